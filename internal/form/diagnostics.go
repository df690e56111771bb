package form

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxSummaryText = 120

// InputSummary describes one interactive element for debugging lookups
type InputSummary struct {
	Tag         string `json:"tag"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Placeholder string `json:"placeholder"`
	AriaLabel   string `json:"aria-label"`
	ID          string `json:"id"`
	Text        string `json:"text"`
}

func (s InputSummary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tag", s.Tag)
	enc.AddString("type", s.Type)
	enc.AddString("name", s.Name)
	enc.AddString("placeholder", s.Placeholder)
	enc.AddString("aria-label", s.AriaLabel)
	enc.AddString("id", s.ID)
	enc.AddString("text", s.Text)
	return nil
}

type inputSummaries []InputSummary

func (ss inputSummaries) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, s := range ss {
		if err := enc.AppendObject(s); err != nil {
			return err
		}
	}
	return nil
}

// DescribeInputs lists the interactive elements of doc
func DescribeInputs(ctx context.Context, doc Document) ([]InputSummary, error) {
	elements, err := doc.Interactive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]InputSummary, 0, len(elements))
	for _, el := range elements {
		text := []rune(el.Text)
		if len(text) > maxSummaryText {
			text = text[:maxSummaryText]
		}
		out = append(out, InputSummary{
			Tag:         el.Tag,
			Type:        el.Type,
			Name:        el.Name,
			Placeholder: el.Placeholder,
			AriaLabel:   el.AriaLabel,
			ID:          el.ID,
			Text:        string(text),
		})
	}
	return out, nil
}

// LogInputs writes the DescribeInputs listing to logger at info level
func LogInputs(ctx context.Context, logger *zap.Logger, doc Document, msg string) {
	inputs, err := DescribeInputs(ctx, doc)
	if err != nil {
		logger.Warn("Could not list page inputs.", zap.Error(err))
		return
	}
	logger.Info(msg, zap.Int("count", len(inputs)), zap.Array("inputs", inputSummaries(inputs)))
}
