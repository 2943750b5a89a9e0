package notify

import (
	"fmt"
	"regexp"

	"learnloop/internal/domain/entity"
)

// placeholderPattern matches {{key}} markers. Keys are word characters and
// dots; surrounding whitespace inside the braces is tolerated.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Render substitutes {{key}} placeholders from data. A key absent from data
// renders as [missing:<key>] rather than failing the whole notification, so
// a template typo degrades one field instead of dropping the send.
func Render(source string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(source, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := data[key]; ok {
			return value
		}
		return fmt.Sprintf("[missing:%s]", key)
	})
}

// RenderForChannel renders a template's title and body for one channel.
// Rendering is pure: the same template and data always produce the same
// output, so a notification's content is fixed at creation time.
func RenderForChannel(tpl *entity.NotificationTemplate, channel entity.Channel, data map[string]string) (title, body string) {
	return Render(tpl.SubjectFor(channel), data), Render(tpl.BodyFor(channel), data)
}
