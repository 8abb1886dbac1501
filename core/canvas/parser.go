package canvas

import (
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/pkg/errors"
)

var (
	bracketRegex    = regexp.MustCompile(`\[(.*?)\]`)
	courseCodeRegex = regexp.MustCompile(`([A-Z]{2,4})-(\d{3,4}[A-Z]?)`)
	courseMarker    = "Course:"
)

// FeedEvent is a VEVENT of a Canvas calendar feed.
type FeedEvent struct {
	UID         string
	Title       string
	Date        time.Time
	Description string
	CourseCode  string // empty when no course could be detected
}

// Parse reads every VEVENT of the iCalendar stream `r`. Dates are converted to `loc`;
// events without DTSTART are skipped.
func Parse(r io.Reader, loc *time.Location) ([]FeedEvent, error) {
	if loc == nil {
		loc = time.UTC
	}

	events := make([]FeedEvent, 0)
	dec := ical.NewDecoder(r)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "decoding calendar")
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			start := comp.Props.Get(ical.PropDateTimeStart)
			if start == nil {
				continue
			}
			date, err := start.DateTime(loc)
			if err != nil {
				continue
			}

			evt := FeedEvent{
				UID:         propText(comp, ical.PropUID),
				Title:       propText(comp, ical.PropSummary),
				Date:        date.In(loc),
				Description: propText(comp, ical.PropDescription),
			}
			evt.CourseCode = DetectCourse(evt.Title, evt.Description)
			events = append(events, evt)
		}
	}
	return events, nil
}

func propText(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	if txt, err := prop.Text(); err == nil {
		return txt
	}
	return prop.Value
}

// ExtractCourseCode returns the first course code (e.g. CSE-110, MAT-2650A) found in `text`.
// If `text` has a [bracketed] part, only that part is searched. Returns "" if none is found.
func ExtractCourseCode(text string) string {
	if text == "" {
		return ""
	}
	courseText := strings.TrimSpace(text)
	if m := bracketRegex.FindStringSubmatch(text); m != nil {
		courseText = strings.TrimSpace(m[1])
	}
	return courseCodeRegex.FindString(strings.ToUpper(courseText))
}

// DetectCourse finds the course of a feed event: the "Course:" line of the description
// if it holds a course code, else the raw [bracketed] part of the summary.
func DetectCourse(summary, description string) string {
	if idx := strings.Index(description, courseMarker); idx >= 0 {
		line := description[idx+len(courseMarker):]
		if nl := strings.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
		}
		if code := ExtractCourseCode(strings.TrimSpace(line)); code != "" {
			return code
		}
	}
	if m := bracketRegex.FindStringSubmatch(summary); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
