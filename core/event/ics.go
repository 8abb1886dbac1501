package event

import (
	"context"
	"fmt"
	"io"

	"github.com/emersion/go-ical"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/user"
)

var icsProductID = "-//CampusMate//Calendar//EN"

// ExportICS writes the calendar feed of `usr` to `w` as an iCalendar document.
func (svc *Service) ExportICS(ctx context.Context, usr user.User, w io.Writer) error {
	items, err := svc.Feed(ctx, usr)
	if err != nil {
		return err
	}
	if err = ical.NewEncoder(w).Encode(feedCalendar(items)); err != nil {
		return errors.Wrap(err, "encoding calendar")
	}
	return nil
}

func feedCalendar(items []FeedItem) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	stamp := nowFunc().UTC()
	for _, item := range items {
		evt := ical.NewEvent()
		evt.Props.SetText(ical.PropUID, fmt.Sprintf("event-%d@campusmate", item.ID))
		evt.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		evt.Props.SetDateTime(ical.PropDateTimeStart, item.Start.UTC())
		evt.Props.SetDateTime(ical.PropDateTimeEnd, item.End.UTC())
		evt.Props.SetText(ical.PropSummary, item.Title)
		if item.Description != "" {
			evt.Props.SetText(ical.PropDescription, item.Description)
		}
		if item.Location != "" {
			evt.Props.SetText(ical.PropLocation, item.Location)
		}
		categories := []string{item.Type}
		if item.Course != "" {
			categories = append(categories, item.Course)
		}
		prop := ical.NewProp(ical.PropCategories)
		prop.SetTextList(categories)
		evt.Props.Set(prop)
		cal.Children = append(cal.Children, evt.Component)
	}
	return cal
}
