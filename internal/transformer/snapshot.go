package transformer

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/untoldecay/dataplane/internal/types"
)

// FileType values match the asset kinds ("file_type").
const (
	FileTypeMetric    = "metric"
	FileTypeDashboard = "dashboard"
)

// RenderMetricSnapshot marshals a metric version's content into the
// numbered-line form a file_snapshot event carries.
func RenderMetricSnapshot(content types.MetricYml) ([]FileLine, error) {
	return renderYAMLLines(content)
}

// RenderDashboardSnapshot is RenderMetricSnapshot's dashboard counterpart.
func RenderDashboardSnapshot(content types.DashboardYml) ([]FileLine, error) {
	return renderYAMLLines(content)
}

func renderYAMLLines(v any) ([]FileLine, error) {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(raw), "\n")
	if text == "" {
		return nil, nil
	}
	split := strings.Split(text, "\n")
	lines := make([]FileLine, len(split))
	for i, s := range split {
		lines[i] = FileLine{LineNumber: i + 1, Text: s}
	}
	return lines, nil
}
