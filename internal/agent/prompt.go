package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

const promptDateLayout = "Monday, January 2, 2006"

var whenParser = newWhenParser()

func newWhenParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// renderPrompt substitutes {TODAYS_DATE} and {DATASETS} into template.
func renderPrompt(template, datasets string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("mode prompt template is empty")
	}
	out := strings.ReplaceAll(template, "{TODAYS_DATE}", time.Now().Format(promptDateLayout))
	out = strings.ReplaceAll(out, "{DATASETS}", datasets)
	return out, nil
}

// ResolveRelativeDate anchors a free-form phrase like "last quarter" or
// "since monday" to now. A phrase outside the parser's vocabulary is not
// an error: it yields the zero time with ok false and a nil error.
func ResolveRelativeDate(phrase string, now time.Time) (time.Time, bool, error) {
	r, err := whenParser.Parse(phrase, now)
	if err != nil {
		return time.Time{}, false, err
	}
	if r == nil {
		return time.Time{}, false, nil
	}
	return r.Time, true, nil
}
