package services

import (
	"context"
	"errors"
	"strings"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/dates"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/repository"

	"github.com/google/uuid"
)

// TripInput is the editable part of a trip. Dates may be given in storage
// or display form.
type TripInput struct {
	Destination    string   `json:"destination"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Flights        string   `json:"flights"`
	Accommodation  string   `json:"accommodation"`
	Notes          string   `json:"notes"`
	InvitedFriends []string `json:"invited_friends"`
}

// TripForm is a trip prepared for editing. Stored dates that no longer
// parse come back empty with a warning.
type TripForm struct {
	Trip      *models.Trip `json:"trip"`
	StartDate dates.Field  `json:"start_date"`
	EndDate   dates.Field  `json:"end_date"`
}

// TripService handles trips
type TripService struct {
	tripRepo   *repository.TripRepository
	source     livequery.Source
	dispatcher *Dispatcher
	clock      clock.Clock
}

// NewTripService creates a new trip service
func NewTripService(
	tripRepo *repository.TripRepository,
	source livequery.Source,
	dispatcher *Dispatcher,
	clk clock.Clock,
) *TripService {
	return &TripService{
		tripRepo:   tripRepo,
		source:     source,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

func (s *TripService) normalize(in TripInput) (TripInput, error) {
	in.Destination = strings.TrimSpace(in.Destination)
	if in.Destination == "" || strings.TrimSpace(in.StartDate) == "" || strings.TrimSpace(in.EndDate) == "" {
		return in, invalid("Please fill in Destination, Start Date, and End Date.")
	}
	start, err := dates.NormalizeDate(in.StartDate)
	if err != nil {
		return in, invalid("Invalid Start Date format.")
	}
	end, err := dates.NormalizeDate(in.EndDate)
	if err != nil {
		return in, invalid("Invalid End Date format.")
	}
	if end < start {
		return in, invalid("End Date cannot be before Start Date.")
	}
	in.StartDate, in.EndDate = start, end
	if in.InvitedFriends == nil {
		in.InvitedFriends = []string{}
	}
	return in, nil
}

// Create creates a trip owned by userID
func (s *TripService) Create(ctx context.Context, userID string, in TripInput) (*models.Trip, Notice, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, Notice{}, err
	}

	trip := &models.Trip{
		ID:             uuid.New().String(),
		UserID:         userID,
		Destination:    in.Destination,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Type:           dates.Classify(in.StartDate, dates.Today(s.clock)),
		Flights:        in.Flights,
		Accommodation:  in.Accommodation,
		Notes:          in.Notes,
		ImageURLs:      []string{},
		InvitedFriends: in.InvitedFriends,
	}
	err = s.dispatcher.Do(ctx, "create_trip", func(ctx context.Context) error {
		return s.tripRepo.Create(ctx, trip)
	}, tripsPath(userID))
	if err != nil {
		return nil, Notice{}, err
	}
	return trip, info("Trip to %s created!", trip.Destination), nil
}

// Update replaces the editable fields of a trip
func (s *TripService) Update(ctx context.Context, userID, tripID string, in TripInput) (*models.Trip, Notice, error) {
	in, err := s.normalize(in)
	if err != nil {
		return nil, Notice{}, err
	}

	trip, err := s.tripRepo.GetByID(ctx, userID, tripID)
	if err != nil {
		return nil, Notice{}, err
	}
	trip.Destination = in.Destination
	trip.StartDate = in.StartDate
	trip.EndDate = in.EndDate
	trip.Type = dates.Classify(in.StartDate, dates.Today(s.clock))
	trip.Flights = in.Flights
	trip.Accommodation = in.Accommodation
	trip.Notes = in.Notes
	trip.InvitedFriends = in.InvitedFriends

	err = s.dispatcher.Do(ctx, "update_trip", func(ctx context.Context) error {
		return s.tripRepo.Update(ctx, trip)
	}, tripsPath(userID))
	if err != nil {
		return nil, Notice{}, err
	}
	return trip, info("Trip to %s updated!", trip.Destination), nil
}

// Delete removes a trip and its timeline
func (s *TripService) Delete(ctx context.Context, userID, tripID string) (Notice, error) {
	trip, err := s.tripRepo.GetByID(ctx, userID, tripID)
	if err != nil {
		return Notice{}, err
	}
	err = s.dispatcher.Do(ctx, "delete_trip", func(ctx context.Context) error {
		return s.tripRepo.Delete(ctx, userID, tripID)
	}, tripsPath(userID), timelinePath(userID, tripID))
	if err != nil {
		return Notice{}, err
	}
	return info("%s deleted successfully.", trip.Destination), nil
}

// List returns the user's trips ordered by start date
func (s *TripService) List(ctx context.Context, userID string) ([]models.Trip, error) {
	docs, err := s.source.Fetch(ctx, TripsQuery(userID))
	if err != nil {
		return nil, err
	}
	return mapper.All("trip", docs, mapper.Trip), nil
}

// Form loads a trip for editing
func (s *TripService) Form(ctx context.Context, userID, tripID string) (*TripForm, error) {
	trip, err := s.tripRepo.GetByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	return &TripForm{
		Trip:      trip,
		StartDate: dates.LoadDateField("Start date for this trip", trip.StartDate),
		EndDate:   dates.LoadDateField("End date for this trip", trip.EndDate),
	}, nil
}

// Day returns one day of a trip with links to its neighbours. An empty
// date selects the first day.
func (s *TripService) Day(ctx context.Context, userID, tripID, date string) (*dates.Day, error) {
	trip, err := s.tripRepo.GetByID(ctx, userID, tripID)
	if err != nil {
		return nil, err
	}
	if date != "" {
		if date, err = dates.NormalizeDate(date); err != nil {
			return nil, invalid("Invalid Date format.")
		}
	}
	day, err := dates.TripDay(trip.StartDate, trip.EndDate, date)
	if err != nil {
		if errors.Is(err, dates.ErrOutOfRange) {
			return nil, invalid("Date is outside this trip.")
		}
		return nil, invalid("Error loading trip dates.")
	}
	return &day, nil
}

// TripsQuery selects a user's trips ordered by start date
func TripsQuery(userID string) livequery.Query {
	return livequery.NewQuery(tripsPath(userID)).OrderBy("start_date", false)
}
