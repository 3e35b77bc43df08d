package entity

import "facemeasure/pkg/facesdk"

type PlatformInfo struct {
	IsIOS     bool `json:"is_ios"`
	IsAndroid bool `json:"is_android"`
}

// ElementBinding holds the page surfaces handed to the engine. GuideText is
// optional; HasGuideText reports whether the page exposes one.
type ElementBinding struct {
	Video         facesdk.Surface
	CanvasElement facesdk.Surface
	Container     facesdk.Surface
	GuideText     facesdk.Surface
	HasGuideText  bool
	VideoCanvas   facesdk.Surface
}
