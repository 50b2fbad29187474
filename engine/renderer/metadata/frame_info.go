package metadata

import (
	"github.com/spaghettifunk/prism/engine/renderer/driver"
	"github.com/spaghettifunk/prism/engine/scene"
)

/**
 * @brief Everything a render subsystem needs to record one frame. Only valid
 * between the begin and the end of that frame.
 */
type FrameInfo struct {
	/** @brief The frame slot in [0, frames in flight). */
	FrameIndex int
	/** @brief Seconds elapsed since the previous frame. */
	FrameTime float32
	/** @brief The primary command buffer being recorded for this frame. */
	CommandBuffer driver.CommandBuffer
	/** @brief The descriptor set holding this frame's GlobalUbo. */
	GlobalDescriptorSet driver.DescriptorSet
	/** @brief The scene objects, borrowed for the duration of the frame. */
	GameObjects scene.Map
}
