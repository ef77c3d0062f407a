//go:build !nogpu

// Package gpu composites layers with a compute pipeline on the wgpu
// hal backend. When no adapter is available the compositor silently
// degrades to the CPU path, so it is always safe to construct.
package gpu

import (
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/compose/logx"
	"github.com/gogpu/compose/render"
)

//go:embed shaders/composite.wgsl
var compositeShaderWGSL string

// layerParams is the per-pass uniform block. Must match Params in
// composite.wgsl.
type layerParams struct {
	TargetW, TargetH uint32
	SrcW, SrcH       uint32
	ClipX0, ClipY0   int32
	ClipX1, ClipY1   int32
	DstX0, DstY0     int32
	DstX1, DstY1     int32
	CropX0, CropY0   int32
	CropX1, CropY1   int32
	Alpha            float32
	Opaque           uint32
	Pad0, Pad1       uint32
}

// Compositor is a GPU-backed render.Renderer.
type Compositor struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	fallback *render.Software

	gpuReady       bool
	externalDevice bool
}

var _ render.Renderer = (*Compositor)(nil)

// New creates a compositor, opening the first usable GPU adapter. If
// no adapter is available the compositor runs on the CPU fallback.
func New() *Compositor {
	c := &Compositor{fallback: render.NewSoftware()}
	if err := c.initGPU(); err != nil {
		logx.Logger().Warn("gpu: init failed, compositing on CPU", "err", err)
	}
	return c
}

// GPUReady reports whether the compute pipeline is usable.
func (c *Compositor) GPUReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpuReady
}

// SetDeviceProvider switches to a shared GPU device from the host.
// The provider must expose HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func (c *Compositor) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.destroyPipeline()
	if !c.externalDevice && c.device != nil {
		c.device.Destroy()
	}
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}

	c.device = device
	c.queue = queue
	c.externalDevice = true

	if err := c.createPipeline(); err != nil {
		c.gpuReady = false
		return fmt.Errorf("gpu: create pipeline with shared device: %w", err)
	}
	c.gpuReady = true
	return nil
}

// Close releases GPU resources. Shared devices are not destroyed.
func (c *Compositor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyPipeline()
	if !c.externalDevice {
		if c.device != nil {
			c.device.Destroy()
		}
		if c.instance != nil {
			c.instance.Destroy()
		}
	}
	c.device = nil
	c.queue = nil
	c.instance = nil
	c.gpuReady = false
	c.externalDevice = false
}

var opaqueBlack = image.NewUniform(color.RGBA{A: 0xff})

// ComposeLayers implements render.Renderer. Each (layer, clip) pair
// becomes one compute pass in a single command encoder; the implicit
// storage barriers between passes keep back-to-front order. One submit
// and one fence wait cover the whole frame.
func (c *Compositor) ComposeLayers(target *image.RGBA, layers []render.ClientLayer, dirty []image.Rectangle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.gpuReady {
		return c.fallback.ComposeLayers(target, layers, dirty)
	}

	bounds := target.Bounds()
	clipped := make([]image.Rectangle, 0, len(dirty))
	for _, d := range dirty {
		d = d.Intersect(bounds)
		if d.Empty() {
			continue
		}
		draw.Draw(target, d, opaqueBlack, image.Point{}, draw.Src)
		clipped = append(clipped, d)
	}
	if len(clipped) == 0 {
		return nil
	}

	passes := buildPasses(bounds, layers, clipped)
	if len(passes) == 0 {
		return nil
	}

	if err := c.dispatch(target, layers, passes); err != nil {
		logx.Logger().Warn("gpu: dispatch failed, compositing on CPU", "err", err)
		return c.fallback.ComposeLayers(target, layers, dirty)
	}
	return nil
}

// Flush implements render.Renderer. Dispatch waits on its fence, so
// there is nothing left pending.
func (c *Compositor) Flush() error { return nil }

type pass struct {
	layer int
	clip  image.Rectangle
}

func buildPasses(bounds image.Rectangle, layers []render.ClientLayer, dirty []image.Rectangle) []pass {
	var out []pass
	for i := range layers {
		l := &layers[i]
		if l.Source == nil || l.Alpha <= 0 {
			continue
		}
		for _, vis := range l.Visible {
			base := vis.Intersect(l.DestFrame).Intersect(bounds)
			if base.Empty() {
				continue
			}
			for _, d := range dirty {
				clip := base.Intersect(d)
				if !clip.Empty() {
					out = append(out, pass{layer: i, clip: clip})
				}
			}
		}
	}
	return out
}

func (c *Compositor) dispatch(target *image.RGBA, layers []render.ClientLayer, passes []pass) error {
	w := uint32(target.Bounds().Dx())
	h := uint32(target.Bounds().Dy())
	targetBytes := packImage(target)
	targetSize := uint64(len(targetBytes))

	targetBuf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "compose_target", Size: targetSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create target buffer: %w", err)
	}
	defer c.device.DestroyBuffer(targetBuf)

	stagingBuf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "compose_staging", Size: targetSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer c.device.DestroyBuffer(stagingBuf)

	c.queue.WriteBuffer(targetBuf, 0, targetBytes)

	// Upload each referenced layer source once.
	srcBufs := make(map[int]hal.Buffer)
	srcSizes := make(map[int]uint64)
	defer func() {
		for _, b := range srcBufs {
			c.device.DestroyBuffer(b)
		}
	}()
	for _, p := range passes {
		if _, ok := srcBufs[p.layer]; ok {
			continue
		}
		src := layers[p.layer].Source
		srcBytes := packImage(src)
		buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "compose_source", Size: uint64(len(srcBytes)),
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create source buffer: %w", err)
		}
		srcBufs[p.layer] = buf
		srcSizes[p.layer] = uint64(len(srcBytes))
		c.queue.WriteBuffer(buf, 0, srcBytes)
	}

	uniformBufs, bindGroups, err := c.createPassBindings(w, h, target, layers, passes, srcBufs, srcSizes, targetBuf, targetSize)
	defer func() {
		for _, bg := range bindGroups {
			if bg != nil {
				c.device.DestroyBindGroup(bg)
			}
		}
		for _, ub := range uniformBufs {
			if ub != nil {
				c.device.DestroyBuffer(ub)
			}
		}
	}()
	if err != nil {
		return err
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "compose_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("compose"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	for i, bg := range bindGroups {
		clip := passes[i].clip
		cp := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "compose_pass"})
		cp.SetPipeline(c.pipeline)
		cp.SetBindGroup(0, bg, nil)
		cp.Dispatch((uint32(clip.Dx())+7)/8, (uint32(clip.Dy())+7)/8, 1)
		cp.End()
	}
	encoder.CopyBufferToBuffer(targetBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: targetSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)
	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := c.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}

	readback := make([]byte, targetSize)
	if err := c.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackImage(readback, target)
	return nil
}

func (c *Compositor) createPassBindings(
	w, h uint32, target *image.RGBA,
	layers []render.ClientLayer, passes []pass,
	srcBufs map[int]hal.Buffer, srcSizes map[int]uint64,
	targetBuf hal.Buffer, targetSize uint64,
) ([]hal.Buffer, []hal.BindGroup, error) {
	paramSize := uint64(unsafe.Sizeof(layerParams{}))
	uniformBufs := make([]hal.Buffer, 0, len(passes))
	bindGroups := make([]hal.BindGroup, 0, len(passes))

	origin := target.Bounds().Min
	for i, p := range passes {
		l := &layers[p.layer]
		srcBounds := l.Source.Bounds()
		// Buffer coordinates are origin-relative.
		clip := p.clip.Sub(origin)
		dst := l.DestFrame.Sub(origin)
		crop := l.SourceCrop.Sub(srcBounds.Min)
		params := layerParams{
			TargetW: w, TargetH: h,
			SrcW: uint32(srcBounds.Dx()), SrcH: uint32(srcBounds.Dy()),
			ClipX0: int32(clip.Min.X), ClipY0: int32(clip.Min.Y),
			ClipX1: int32(clip.Max.X), ClipY1: int32(clip.Max.Y),
			DstX0: int32(dst.Min.X), DstY0: int32(dst.Min.Y),
			DstX1: int32(dst.Max.X), DstY1: int32(dst.Max.Y),
			CropX0: int32(crop.Min.X), CropY0: int32(crop.Min.Y),
			CropX1: int32(crop.Max.X), CropY1: int32(crop.Max.Y),
			Alpha:  l.Alpha,
		}
		if l.Opaque {
			params.Opaque = 1
		}
		paramsBytes := unsafe.Slice((*byte)(unsafe.Pointer(&params)), paramSize) //nolint:gosec // safe struct serialization

		ub, err := c.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "compose_params", Size: paramSize,
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return uniformBufs, bindGroups, fmt.Errorf("create uniform buffer %d: %w", i, err)
		}
		uniformBufs = append(uniformBufs, ub)
		c.queue.WriteBuffer(ub, 0, paramsBytes)

		bg, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label: "compose_bind", Layout: c.bindLayout,
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: paramSize}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: srcBufs[p.layer].NativeHandle(), Offset: 0, Size: srcSizes[p.layer]}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: targetBuf.NativeHandle(), Offset: 0, Size: targetSize}},
			},
		})
		if err != nil {
			return uniformBufs, bindGroups, fmt.Errorf("create bind group %d: %w", i, err)
		}
		bindGroups = append(bindGroups, bg)
	}
	return uniformBufs, bindGroups, nil
}

func (c *Compositor) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	c.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	c.device = openDev.Device
	c.queue = openDev.Queue
	if err := c.createPipeline(); err != nil {
		c.device.Destroy()
		c.device = nil
		c.queue = nil
		return fmt.Errorf("create pipeline: %w", err)
	}
	c.gpuReady = true
	logx.Logger().Info("gpu: compositor initialized", "adapter", selected.Info.Name)
	return nil
}

func (c *Compositor) createPipeline() error {
	spirvBytes, err := naga.Compile(compositeShaderWGSL)
	if err != nil {
		return fmt.Errorf("compile composite shader: %w", err)
	}
	spirv := make([]uint32, len(spirvBytes)/4)
	for i := range spirv {
		spirv[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "composite",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	c.shader = shader

	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "composite_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	c.bindLayout = bindLayout

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "composite_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{c.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout

	pipeline, err := c.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "composite_pipeline", Layout: c.pipeLayout,
		Compute: hal.ComputeState{Module: c.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	c.pipeline = pipeline
	return nil
}

func (c *Compositor) destroyPipeline() {
	if c.device == nil {
		return
	}
	if c.pipeline != nil {
		c.device.DestroyComputePipeline(c.pipeline)
		c.pipeline = nil
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
}

// packImage copies an image into a tight RGBA byte buffer. image.RGBA
// already stores r,g,b,a in memory order, which is the little-endian
// u32 layout the shader expects.
func packImage(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == w*4 && b.Min == (image.Point{}) {
		out := make([]byte, w*h*4)
		copy(out, img.Pix[:w*h*4])
		return out
	}
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], img.Pix[row:row+w*4])
	}
	return out
}

// unpackImage copies a tight RGBA byte buffer back into the image.
func unpackImage(data []byte, img *image.RGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(img.Pix[row:row+w*4], data[y*w*4:(y+1)*w*4])
	}
}
