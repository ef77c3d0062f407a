//go:build nogpu

package main

import (
	"log"

	"github.com/gogpu/compose/render"
)

func newRenderer(useGPU bool) render.Renderer {
	if useGPU {
		log.Println("Built with nogpu, compositing on the CPU")
	}
	return render.NewSoftware()
}
