//go:build !nogpu

package main

import (
	"log"

	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/render/gpu"
)

func newRenderer(useGPU bool) render.Renderer {
	if !useGPU {
		return render.NewSoftware()
	}
	c := gpu.New()
	if !c.GPUReady() {
		log.Println("No GPU adapter available, compositing on the CPU")
	}
	return c
}
