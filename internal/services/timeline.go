package services

import (
	"context"
	"strings"

	"tripwise-backend/internal/dates"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/repository"

	"github.com/google/uuid"
)

// TimelineInput is the editable part of a timeline item
type TimelineInput struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

// TimelineForm is a timeline item prepared for editing
type TimelineForm struct {
	Item *models.TimelineItem `json:"item"`
	Date dates.Field          `json:"date"`
	Time dates.Field          `json:"time"`
}

// TimelineService handles the dated entries of a trip
type TimelineService struct {
	timelineRepo *repository.TimelineRepository
	tripRepo     *repository.TripRepository
	source       livequery.Source
	dispatcher   *Dispatcher
}

// NewTimelineService creates a new timeline service
func NewTimelineService(
	timelineRepo *repository.TimelineRepository,
	tripRepo *repository.TripRepository,
	source livequery.Source,
	dispatcher *Dispatcher,
) *TimelineService {
	return &TimelineService{
		timelineRepo: timelineRepo,
		tripRepo:     tripRepo,
		source:       source,
		dispatcher:   dispatcher,
	}
}

func (s *TimelineService) normalize(ctx context.Context, userID, tripID string, in TimelineInput) (TimelineInput, error) {
	in.Description = strings.TrimSpace(in.Description)
	if strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" || in.Description == "" {
		return in, invalid("Please fill Date, Time, and Description.")
	}
	date, err := dates.NormalizeDate(in.Date)
	if err != nil {
		return in, invalid("Invalid Date format.")
	}
	tm, err := dates.NormalizeTime(in.Time)
	if err != nil {
		return in, invalid("Invalid Time format.")
	}

	trip, err := s.tripRepo.GetByID(ctx, userID, tripID)
	if err != nil {
		return in, err
	}
	// Trips with unreadable dates accept any day.
	if _, err := dates.TripDay(trip.StartDate, trip.EndDate, date); err != nil {
		if _, rangeErr := dates.Days(trip.StartDate, trip.EndDate); rangeErr == nil {
			return in, invalid("Date is outside this trip.")
		}
	}

	in.Date, in.Time = date, tm
	return in, nil
}

// Create adds an item to a trip's timeline
func (s *TimelineService) Create(ctx context.Context, userID, tripID string, in TimelineInput) (*models.TimelineItem, Notice, error) {
	in, err := s.normalize(ctx, userID, tripID, in)
	if err != nil {
		return nil, Notice{}, err
	}
	item := &models.TimelineItem{
		ID:          uuid.New().String(),
		TripID:      tripID,
		Date:        in.Date,
		Time:        in.Time,
		Description: in.Description,
		Notes:       in.Notes,
		ImageURLs:   []string{},
	}
	err = s.dispatcher.Do(ctx, "create_timeline_item", func(ctx context.Context) error {
		return s.timelineRepo.Create(ctx, userID, item)
	}, timelinePath(userID, tripID))
	if err != nil {
		return nil, Notice{}, err
	}
	return item, info("Timeline item added!"), nil
}

// Update replaces the editable fields of a timeline item
func (s *TimelineService) Update(ctx context.Context, userID, tripID, itemID string, in TimelineInput) (*models.TimelineItem, Notice, error) {
	in, err := s.normalize(ctx, userID, tripID, in)
	if err != nil {
		return nil, Notice{}, err
	}
	item, err := s.timelineRepo.GetByID(ctx, userID, tripID, itemID)
	if err != nil {
		return nil, Notice{}, err
	}
	item.Date = in.Date
	item.Time = in.Time
	item.Description = in.Description
	item.Notes = in.Notes

	err = s.dispatcher.Do(ctx, "update_timeline_item", func(ctx context.Context) error {
		return s.timelineRepo.Update(ctx, userID, item)
	}, timelinePath(userID, tripID))
	if err != nil {
		return nil, Notice{}, err
	}
	return item, info("Timeline item updated!"), nil
}

// Delete removes a timeline item
func (s *TimelineService) Delete(ctx context.Context, userID, tripID, itemID string) (Notice, error) {
	err := s.dispatcher.Do(ctx, "delete_timeline_item", func(ctx context.Context) error {
		return s.timelineRepo.Delete(ctx, userID, tripID, itemID)
	}, timelinePath(userID, tripID))
	if err != nil {
		return Notice{}, err
	}
	return info("Timeline item deleted."), nil
}

// List returns the items of a trip, limited to one day when date is set,
// ordered by time
func (s *TimelineService) List(ctx context.Context, userID, tripID, date string) ([]models.TimelineItem, error) {
	if date != "" {
		var err error
		if date, err = dates.NormalizeDate(date); err != nil {
			return nil, invalid("Invalid Date format.")
		}
	}
	if _, err := s.tripRepo.GetByID(ctx, userID, tripID); err != nil {
		return nil, err
	}
	docs, err := s.source.Fetch(ctx, TimelineQuery(userID, tripID, date))
	if err != nil {
		return nil, err
	}
	return mapper.All("timeline_item", docs, mapper.TimelineItem), nil
}

// Form loads a timeline item for editing
func (s *TimelineService) Form(ctx context.Context, userID, tripID, itemID string) (*TimelineForm, error) {
	item, err := s.timelineRepo.GetByID(ctx, userID, tripID, itemID)
	if err != nil {
		return nil, err
	}
	return &TimelineForm{
		Item: item,
		Date: dates.LoadDateField("Date for this item", item.Date),
		Time: dates.LoadTimeField("Time for this item", item.Time),
	}, nil
}

// TimelineQuery selects a trip's timeline, optionally for a single day
func TimelineQuery(userID, tripID, date string) livequery.Query {
	q := livequery.NewQuery(timelinePath(userID, tripID))
	if date != "" {
		q = q.Where("date", livequery.Eq, date)
	}
	return q.OrderBy("date", false).OrderBy("time", false)
}
