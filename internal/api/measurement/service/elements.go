package measurementService

import (
	"facemeasure/internal/api/measurement"
	"facemeasure/internal/entity"
	"facemeasure/pkg/facesdk"
)

const (
	SelectorVideo        = "#input_video"
	SelectorOutputCanvas = ".output_canvas"
	SelectorContainer    = ".progress-bar"
	SelectorGuideText    = ".guide-text"
	SelectorVideoCanvas  = "video_canvas"

	VideoCanvasWidth  = 640
	VideoCanvasHeight = 480
)

type Document interface {
	Lookup(selector string) (facesdk.Surface, bool)
}

type pageDocument map[string]facesdk.Surface

// NewPageDocument indexes the surfaces a page announced in its load message.
func NewPageDocument(elements []measurement.ElementDescriptor) Document {
	doc := make(pageDocument, len(elements))
	for _, el := range elements {
		doc[el.Selector] = facesdk.Surface{
			Selector: el.Selector,
			Kind:     el.Kind,
			Width:    el.Width,
			Height:   el.Height,
		}
	}
	return doc
}

func (d pageDocument) Lookup(selector string) (facesdk.Surface, bool) {
	s, ok := d[selector]
	return s, ok
}

// BindElements resolves the surfaces the engine needs. It never returns a
// partial binding.
func BindElements(doc Document) (entity.ElementBinding, error) {
	required := []struct {
		role     string
		selector string
	}{
		{"video", SelectorVideo},
		{"output canvas", SelectorOutputCanvas},
		{"container", SelectorContainer},
	}

	found := make([]facesdk.Surface, len(required))
	for i, r := range required {
		s, ok := doc.Lookup(r.selector)
		if !ok {
			return entity.ElementBinding{}, &measurement.MissingElementError{
				Role:     r.role,
				Selector: r.selector,
			}
		}
		found[i] = s
	}

	guideText, hasGuideText := doc.Lookup(SelectorGuideText)

	return entity.ElementBinding{
		Video:         found[0],
		CanvasElement: found[1],
		Container:     found[2],
		GuideText:     guideText,
		HasGuideText:  hasGuideText,
		VideoCanvas:   newVideoCanvas(),
	}, nil
}

func newVideoCanvas() facesdk.Surface {
	return facesdk.Surface{
		Selector: SelectorVideoCanvas,
		Kind:     "canvas",
		Width:    VideoCanvasWidth,
		Height:   VideoCanvasHeight,
		Hidden:   true,
	}
}
