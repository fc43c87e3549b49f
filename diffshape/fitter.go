package diffshape

import (
	"unicode/utf8"

	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// maxFitSteps bounds the shrink loop; a document that is still too large
// afterwards falls straight back to its file summaries.
const maxFitSteps = 256

type fitOutcome struct {
	payload      string
	previewLines int
	hunks        int
	size         int
	// steps is empty when the initial document already fits.
	steps []models.FitStep
}

// fit shrinks the semantic document until it fits in budget characters.
// Previews are halved first, down to minPreview lines, then the lowest ranked
// hunk is dropped one at a time. Each step is recorded with its size.
func fit(doc *semanticDoc, budget, minPreview int) (fitOutcome, error) {
	out := fitOutcome{previewLines: doc.previewLines, hunks: len(doc.hunks)}
	if err := out.render(doc); err != nil {
		return out, err
	}
	if out.size <= budget {
		return out, nil
	}
	out.record()

	for i := 0; out.size > budget && i < maxFitSteps; i++ {
		switch {
		case out.previewLines > minPreview:
			out.previewLines = max(out.previewLines/2, minPreview)
		case out.hunks > 0:
			out.hunks--
		default:
			return out, budgetExceeded(budget, out.size, nil)
		}
		if err := out.render(doc); err != nil {
			return out, err
		}
		out.record()
	}

	if out.size > budget && out.hunks > 0 {
		out.previewLines = minPreview
		out.hunks = 0
		if err := out.render(doc); err != nil {
			return out, err
		}
		out.record()
	}
	if out.size > budget {
		return out, budgetExceeded(budget, out.size, nil)
	}
	return out, nil
}

func (o *fitOutcome) render(doc *semanticDoc) error {
	payload, err := doc.render(o.previewLines, o.hunks)
	if err != nil {
		return err
	}
	o.payload = payload
	o.size = utf8.RuneCountInString(payload)
	return nil
}

func (o *fitOutcome) record() {
	o.steps = append(o.steps, models.FitStep{PreviewLines: o.previewLines, Hunks: o.hunks, Size: o.size})
}
