package engine

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/frame"
	"github.com/spaghettifunk/prism/engine/platform"
	"github.com/spaghettifunk/prism/engine/renderer"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/renderer/vulkan"
	"github.com/spaghettifunk/prism/engine/scene"
	"github.com/spaghettifunk/prism/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *core.Config
	configPath   string
	watcher      *core.ConfigWatcher

	isRunning   atomic.Bool
	isSuspended bool
	width       uint32
	height      uint32

	platform      *platform.Platform
	device        *vulkan.Device
	renderer      *renderer.Renderer
	globals       *renderer.GlobalResources
	systemManager *systems.SystemManager
	loop          *frame.Loop
	objects       scene.Map

	clock   *core.Clock
	metrics *core.FrameMetrics
}

// New prepares an engine for g. configPath is watched for changes once the
// engine is initialized; cfg is its current content.
func New(g *Game, cfg *core.Config, configPath string) (*Engine, error) {
	if g == nil {
		return nil, errors.New("game instance is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine configuration")
	}
	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       cfg,
		configPath:   configPath,
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
		platform:     platform.New(),
		objects:      scene.Map{},
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
	}
	e.isRunning.Store(true)
	return e, nil
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.New("engine already initialized")
	}
	e.currentStage = EngineStageInitializing

	if !core.EventSystemInitialize() {
		return errors.New("failed to initialize the event system")
	}
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)

	app := e.config.Application
	if err := e.platform.Startup(app.Name, app.StartX, app.StartY, app.Width, app.Height); err != nil {
		return err
	}

	device, err := vulkan.New(vulkan.Config{
		ApplicationName: app.Name,
		Validation:      e.config.Renderer.Validation,
	}, e.platform)
	if err != nil {
		return errors.Wrap(err, "create vulkan device")
	}
	e.device = device

	e.renderer, err = renderer.New(device, e.platform,
		renderer.WithFramesInFlight(e.config.Renderer.FramesInFlight),
		renderer.WithClearColor(e.config.Renderer.ClearColor),
		renderer.WithPresentMode(driver.ParsePresentMode(e.config.Renderer.PresentMode)))
	if err != nil {
		return err
	}

	e.globals, err = renderer.NewGlobalResources(device, e.renderer.FramesInFlight(),
		renderer.WithPoolCapacity(e.config.Descriptors.MaxSets, e.config.Descriptors.UniformBuffers))
	if err != nil {
		return err
	}

	e.systemManager = systems.NewSystemManager()
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.objects); err != nil {
			return err
		}
	}

	e.loop = frame.NewLoop(e.renderer, e.globals, e.systemManager, e.objects)
	if e.gameInstance.FnRender != nil {
		e.loop.Render = frame.RenderFn(e.gameInstance.FnRender)
	}
	e.loop.Apply(e.config)

	if e.configPath != "" {
		e.watcher, err = core.NewConfigWatcher(e.configPath)
		if err != nil {
			// live reload is a convenience, the engine runs without it
			core.LogWarn("config %s will not be reloaded: %s", e.configPath, err)
		}
	}

	extent := e.renderer.Extent()
	e.width, e.height = extent.Width, extent.Height
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return errors.New("engine must be initialized before running")
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()

	var runningTime float64 = 0.0

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		if e.watcher != nil {
			if cfg, ok := e.watcher.Poll(); ok {
				ctx := core.EventContext{}
				ctx.Data.Any = cfg
				core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e.watcher, ctx)
			}
		}

		if e.isSuspended {
			// nothing to draw into, sleep until the window changes
			e.platform.WaitEvents()
			e.clock.Resync()
			continue
		}

		var delta float64 = e.clock.Delta()
		var frameStartTime float64 = platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				return err
			}
		}

		if _, err := e.loop.Step(float32(delta)); err != nil {
			core.LogError("frame failed, shutting down: %s", err)
			return errors.Wrap(err, "render frame")
		}

		var frameElapsedTime float64 = platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime)
		runningTime += frameElapsedTime
		if runningTime >= 1.0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("%.0f fps, %.3f ms/frame", fps, ms)
			runningTime = 0
		}
	}

	return nil
}

// Stop asks the main loop to exit after the current iteration. Safe to call
// from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases everything Initialize created, in reverse order. It must
// run on the main thread after Run has returned.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var firstErr error
	if e.gameInstance.FnShutdown != nil {
		firstErr = e.gameInstance.FnShutdown()
	}
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.watcher = nil
	}
	if e.renderer != nil {
		if err := e.renderer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.renderer = nil
	}
	if e.globals != nil {
		e.globals.Destroy()
		e.globals = nil
	}
	if e.device != nil {
		e.device.Close()
		e.device = nil
	}
	e.platform.Shutdown()
	core.EventSystemShutdown()

	e.currentStage = EngineStageUninitialized
	return firstErr
}

func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	core.LogDebug("key %d pressed in window.", data.Data.U32[0])
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width := data.Data.U32[0]
	height := data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height

	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize handler failed: %s", err)
		}
	}
	// the renderer picks the new size up from the platform on its own
	return false
}

func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	cfg, ok := data.Data.Any.(*core.Config)
	if !ok {
		core.LogError("wrong payload associated with the event code `%d`", code)
		return false
	}
	if cfg.Renderer.FramesInFlight != e.config.Renderer.FramesInFlight ||
		cfg.Renderer.PresentMode != e.config.Renderer.PresentMode ||
		cfg.Renderer.Validation != e.config.Renderer.Validation {
		core.LogWarn("renderer settings changed, they take effect after a restart")
	}
	e.loop.Apply(cfg)
	e.config = cfg
	core.LogInfo("configuration reloaded")
	return true
}
