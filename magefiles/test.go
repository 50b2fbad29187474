//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs the unit tests. The vulkan backend and the platform layer need a GPU
// and a display, so only the packages that run headless are listed.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race",
		"./engine/core/...",
		"./engine/containers/...",
		"./engine/math/...",
		"./engine/scene/...",
		"./engine/systems/...",
		"./engine/frame/...",
		"./engine/renderer/descriptors/...",
		"./engine/renderer/swapchain/...",
		"./engine/renderer/metadata/...",
		"./engine/renderer/driver/...",
		"./engine/renderer",
	), withStream())
	return err
}

// Runs the vulkan backend bookkeeping tests. They need cgo and the glfw
// build dependencies but no GPU.
func (Test) Backend() error {
	_, err := executeCmd("go", withArgs("test", "./engine/renderer/vulkan/..."), withStream())
	return err
}
