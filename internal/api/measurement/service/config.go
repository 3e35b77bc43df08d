package measurementService

import (
	"facemeasure/internal/entity"
	"facemeasure/pkg/facesdk"
)

const (
	DefaultExportFilename        = "face_detection_rgb_data.txt"
	DefaultReadyToMeasuringDelay = 5
)

type Options struct {
	Debug                 facesdk.Debug
	DataDownload          facesdk.DataDownload
	ReadyToMeasuringDelay int
}

func DefaultOptions() Options {
	return Options{
		Debug: facesdk.Debug{EnableConsoleLog: false},
		DataDownload: facesdk.DataDownload{
			Enabled:      false,
			AutoDownload: false,
			Filename:     DefaultExportFilename,
		},
		ReadyToMeasuringDelay: DefaultReadyToMeasuringDelay,
	}
}

func BuildConfiguration(
	platform entity.PlatformInfo,
	debug facesdk.Debug,
	export facesdk.DataDownload,
	elements entity.ElementBinding,
	readyDelaySeconds int,
) facesdk.Config {
	return facesdk.Config{
		Platform: facesdk.Platform{
			IsIOS:     platform.IsIOS,
			IsAndroid: platform.IsAndroid,
		},
		Debug:        debug,
		DataDownload: export,
		Elements: facesdk.Elements{
			Video:         elements.Video,
			CanvasElement: elements.CanvasElement,
			VideoCanvas:   elements.VideoCanvas,
			Container:     elements.Container,
		},
		Measurement: facesdk.Measurement{
			ReadyToMeasuringDelay: readyDelaySeconds,
		},
	}
}
