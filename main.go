package main

import (
	"flag"
	"fmt"
	"log"
	"runtime"

	"nicegfx/render"
	"nicegfx/shaders"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/xlab/linmath"
)

const title = "nicegfx"

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	flag.BoolVar(&args.debug, "debug", false, "Enable Vulkan validation layers")
	flag.BoolVar(&args.clear, "clear", false,
		"Clear-only frames, no triangle pipeline")
	flag.StringVar(&args.shaders, "shaders", "shaders",
		"Directory with the compiled .spv shader binaries")
	flag.IntVar(&args.width, "width", 1024, "Initial window width")
	flag.IntVar(&args.height, "height", 768, "Initial window height")
}

var args struct {
	debug   bool
	clear   bool
	shaders string
	width   int
	height  int
}

func main() {
	flag.Parse()

	app := &App{
		width:                  args.width,
		height:                 args.height,
		enableValidationLayers: args.debug,
		validationLayers: []string{
			"VK_LAYER_KHRONOS_validation\x00",
		},
		surface: vk.NullSurface,
	}
	if err := app.Run(); err != nil {
		log.Fatalf("ERROR: %s", err)
	}
}

// App owns everything with process lifetime: the window, the Vulkan instance
// and surface, the device and the presentation engine driven by the loop.
type App struct {
	width  int
	height int

	// validationLayers is the list of layers enabled on the instance and
	// device when the -debug flag is set.
	validationLayers       []string
	enableValidationLayers bool

	window   *glfw.Window
	instance vk.Instance
	surface  vk.Surface

	dev    *render.Device
	engine *render.Engine
}

// Run runs the program: window, Vulkan setup, presentation loop, teardown.
func (a *App) Run() error {
	if err := a.initWindow(); err != nil {
		return fmt.Errorf("initWindow: %w", err)
	}
	defer a.cleanWindow()

	if err := a.initVulkan(); err != nil {
		a.cleanVulkan()
		return fmt.Errorf("initVulkan: %w", err)
	}
	defer a.cleanVulkan()

	platform := newPlatform(a.window)
	loop := render.NewLoop(a.engine, platform, func(in render.Input) linmath.Vec4 {
		return pointerColor(in, platform.Extent())
	})

	if err := loop.Run(); err != nil {
		return fmt.Errorf("presentation loop: %w", err)
	}

	return nil
}

// pointerColor maps the pointer position to the frame's clear color: red
// follows the horizontal position, green the vertical, blue their sum.
func pointerColor(in render.Input, extent vk.Extent2D) linmath.Vec4 {
	w := float64(extent.Width)
	h := float64(extent.Height)
	if w == 0 || h == 0 {
		return linmath.Vec4{0, 0, 0, 1}
	}

	return linmath.Vec4{
		float32(in.PointerX / w),
		float32(in.PointerY / h),
		float32((in.PointerX + in.PointerY) / (w + h)),
		1,
	}
}

func (a *App) initWindow() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw.Init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(a.width, a.height, title, nil, nil)
	if err != nil {
		return fmt.Errorf("creating window: %w", err)
	}

	a.window = window
	return nil
}

func (a *App) cleanWindow() {
	a.window.Destroy()
	glfw.Terminate()
}

func (a *App) initVulkan() error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to init Vulkan Go: %w", err)
	}

	if err := a.createInstance(); err != nil {
		return fmt.Errorf("createInstance: %w", err)
	}

	if err := a.createSurface(); err != nil {
		return fmt.Errorf("createSurface: %w", err)
	}

	var layers []string
	if a.enableValidationLayers {
		layers = a.validationLayers
	}

	dev, err := render.OpenDevice(a.instance, a.surface, layers)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	a.dev = dev

	var cfg render.EngineConfig
	if !args.clear {
		vert, frag, err := shaders.Load(args.shaders)
		if err != nil {
			return fmt.Errorf("loading shaders: %w", err)
		}
		if args.debug {
			log.Printf("vertex shader code size: %d", len(vert))
			log.Printf("fragment shader code size: %d", len(frag))
		}
		cfg.VertexShader = vert
		cfg.FragmentShader = frag
	}

	width, height := a.window.GetFramebufferSize()
	engine, err := render.NewEngine(a.dev, a.surface, vk.Extent2D{
		Width:  uint32(width),
		Height: uint32(height),
	}, cfg)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	a.engine = engine

	return nil
}

// cleanVulkan tears the Vulkan state down dependents-first. Every step is
// idempotent so it is safe both as the deferred teardown and on a failed
// partial init.
func (a *App) cleanVulkan() {
	if a.engine != nil {
		a.engine.Destroy()
		a.engine = nil
	}
	if a.dev != nil {
		a.dev.Destroy()
		a.dev = nil
	}
	if a.surface != vk.NullSurface {
		vk.DestroySurface(a.instance, a.surface, nil)
		a.surface = vk.NullSurface
	}
	if a.instance != nil {
		vk.DestroyInstance(a.instance, nil)
		a.instance = nil
	}
}

func (a *App) createInstance() error {
	if a.enableValidationLayers && !checkValidationSupport(a.validationLayers) {
		return fmt.Errorf("validation layers requested but not available")
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   title + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "No Engine\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	glfwExtensions := a.window.GetRequiredInstanceExtensions()
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(glfwExtensions)),
		PpEnabledExtensionNames: glfwExtensions,
	}

	if a.enableValidationLayers {
		createInfo.EnabledLayerCount = uint32(len(a.validationLayers))
		createInfo.PpEnabledLayerNames = a.validationLayers
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return fmt.Errorf("failed to create Vulkan instance: %w", err)
	}

	a.instance = instance
	return nil
}

func (a *App) createSurface() error {
	surfacePtr, err := a.window.CreateWindowSurface(a.instance, nil)
	if err != nil {
		return fmt.Errorf("cannot create surface within GLFW window: %w", err)
	}

	a.surface = vk.SurfaceFromPointer(surfacePtr)
	return nil
}

func checkValidationSupport(validationLayers []string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	availableLayers := make([]vk.LayerProperties, count)

	if vk.EnumerateInstanceLayerProperties(&count, availableLayers) != vk.Success {
		return false
	}

	availableLayersStr := make([]string, 0, count)
	for _, layer := range availableLayers {
		layer.Deref()

		layerName := vk.ToString(layer.LayerName[:])
		availableLayersStr = append(availableLayersStr, layerName+"\x00")
	}

	for _, validationLayer := range validationLayers {
		layerFound := false

		for _, instanceLayer := range availableLayersStr {
			if validationLayer == instanceLayer {
				layerFound = true
				break
			}
		}

		if !layerFound {
			return false
		}
	}

	return true
}
