package services

import (
	"context"
	"fmt"
	"strings"

	"tripwise-backend/internal/clock"
	"tripwise-backend/internal/dates"
	"tripwise-backend/internal/livequery"
	"tripwise-backend/internal/mapper"
	"tripwise-backend/internal/models"
	"tripwise-backend/internal/viewmodel"
)

// View names a client can open
const (
	ViewHome          = "home"
	ViewTimeline      = "timeline"
	ViewFeed          = "feed"
	ViewConversations = "conversations"
	ViewMessages      = "messages"
	ViewFriends       = "friends"
	ViewProfile       = "profile"
	ViewUserPosts     = "user_posts"
)

// Home view sections
const (
	SectionUpcoming = "upcoming"
	SectionPast     = "past"
)

// View is a live list opened by a client
type View interface {
	Name() string
	Close()
}

// ViewSink receives the patches of one open view. Ops is a slice of
// listdiff.Op over the view's row type.
type ViewSink interface {
	Render(section string, seq uint64, count int, ops any)
	Fail(err error)
}

// ViewRegistry opens named views for a user
type ViewRegistry struct {
	engine *livequery.Engine
	clock  clock.Clock
}

// NewViewRegistry creates a new view registry
func NewViewRegistry(engine *livequery.Engine, clk clock.Clock) *ViewRegistry {
	return &ViewRegistry{engine: engine, clock: clk}
}

// Open starts the view called name for userID. params carries the
// view's arguments such as trip_id.
func (r *ViewRegistry) Open(ctx context.Context, userID, name string, params map[string]string, sink ViewSink) (View, error) {
	return r.open(ctx, userID, name, params, sink, nil)
}

// Subscribe shows the view called name under subID on c. A subID that
// already shows name is reopened in place so the rows the client holds stay
// in step; a subID showing another view must be unsubscribed first.
func (r *ViewRegistry) Subscribe(ctx context.Context, c *Client, subID, name string, params map[string]string, sink ViewSink) error {
	var view View
	var err error
	if prev, ok := c.View(subID); ok {
		view, err = r.Reopen(ctx, c.UserID, prev, name, params)
	} else {
		view, err = r.Open(ctx, c.UserID, name, params, sink)
	}
	if err != nil {
		return err
	}
	c.OpenView(subID, view)
	return nil
}

// Reopen points an open view at the query built from params. The rows the
// client already holds for the view are kept and the first new snapshot is
// diffed against them. A view only reopens under the name it was opened
// with.
func (r *ViewRegistry) Reopen(ctx context.Context, userID string, view View, name string, params map[string]string) (View, error) {
	if view.Name() != name {
		return nil, invalid(fmt.Sprintf("Subscription already shows %s. Unsubscribe first.", view.Name()))
	}
	return r.open(ctx, userID, name, params, nil, view)
}

func (r *ViewRegistry) open(ctx context.Context, userID, name string, params map[string]string, sink ViewSink, prev View) (View, error) {
	param := func(key string) (string, error) {
		v := strings.TrimSpace(params[key])
		if v == "" {
			return "", invalid(fmt.Sprintf("Missing %s.", key))
		}
		return v, nil
	}
	target := func() string {
		if v := strings.TrimSpace(params["user_id"]); v != "" {
			return v
		}
		return userID
	}

	switch name {
	case ViewHome:
		return open(ctx, r.engine, name, r.homeSpec(), TripsQuery(userID), sink, prev)

	case ViewTimeline:
		tripID, err := param("trip_id")
		if err != nil {
			return nil, err
		}
		date := params["date"]
		if date != "" {
			if date, err = dates.NormalizeDate(date); err != nil {
				return nil, invalid("Invalid Date format.")
			}
		}
		return open(ctx, r.engine, name, timelineSpec(), TimelineQuery(userID, tripID, date), sink, prev)

	case ViewFeed:
		return open(ctx, r.engine, name, feedSpec(), FeedQuery(), sink, prev)

	case ViewConversations:
		return open(ctx, r.engine, name, conversationsSpec(), ConversationsQuery(userID), sink, prev)

	case ViewMessages:
		otherID, err := param("other_user_id")
		if err != nil {
			return nil, err
		}
		if otherID == userID {
			return nil, invalid("You cannot message yourself.")
		}
		return open(ctx, r.engine, name, messagesSpec(), MessagesQuery(models.ConversationID(userID, otherID)), sink, prev)

	case ViewFriends:
		return open(ctx, r.engine, name, friendsSpec(), FriendsQuery(userID), sink, prev)

	case ViewProfile:
		return open(ctx, r.engine, name, profileSpec(), ProfileQuery(target()), sink, prev)

	case ViewUserPosts:
		return open(ctx, r.engine, name, feedSpec(), UserPostsQuery(target()), sink, prev)
	}
	return nil, invalid(fmt.Sprintf("Unknown view %q.", name))
}

// ProfileQuery selects a single user
func ProfileQuery(userID string) livequery.Query {
	return livequery.NewQuery(usersPath()).Where("id", livequery.Eq, userID)
}

// homeSpec splits trips into upcoming and past by today's date, which is
// read when each snapshot is mapped.
func (r *ViewRegistry) homeSpec() viewmodel.Spec[models.Trip] {
	return viewmodel.Spec[models.Trip]{
		Kind: "trip",
		Map: func(doc livequery.Document) (models.Trip, error) {
			t, err := mapper.Trip(doc)
			if err != nil {
				return t, err
			}
			t.Type = dates.Classify(t.StartDate, dates.Today(r.clock))
			return t, nil
		},
		Key:      func(t models.Trip) string { return t.ID },
		Sections: []string{SectionUpcoming, SectionPast},
		Section: func(t models.Trip) string {
			if t.Type == models.TripTypeUpcoming {
				return SectionUpcoming
			}
			return SectionPast
		},
	}
}

func timelineSpec() viewmodel.Spec[models.TimelineItem] {
	return viewmodel.Spec[models.TimelineItem]{
		Kind: "timeline_item",
		Map:  mapper.TimelineItem,
		Key:  func(i models.TimelineItem) string { return i.ID },
	}
}

func feedSpec() viewmodel.Spec[models.SharedTrip] {
	return viewmodel.Spec[models.SharedTrip]{
		Kind: "shared_trip",
		Map:  mapper.SharedTrip,
		Key:  func(p models.SharedTrip) string { return p.ID },
	}
}

func conversationsSpec() viewmodel.Spec[models.Conversation] {
	return viewmodel.Spec[models.Conversation]{
		Kind: "conversation",
		Map:  mapper.Conversation,
		Key:  func(c models.Conversation) string { return c.ID },
	}
}

func messagesSpec() viewmodel.Spec[models.Message] {
	return viewmodel.Spec[models.Message]{
		Kind: "message",
		Map:  mapper.Message,
		Key:  func(m models.Message) string { return m.ID },
	}
}

func friendsSpec() viewmodel.Spec[models.Friend] {
	return viewmodel.Spec[models.Friend]{
		Kind: "friend",
		Map:  mapper.Friend,
		Key:  func(f models.Friend) string { return f.ID },
	}
}

func profileSpec() viewmodel.Spec[models.User] {
	return viewmodel.Spec[models.User]{
		Kind: "user",
		Map:  mapper.User,
		Key:  func(u models.User) string { return u.ID },
	}
}

// liveView is a view-model together with the name it was opened under
type liveView[T any] struct {
	*viewmodel.ViewModel[T]
	name string
}

func (v *liveView[T]) Name() string { return v.name }

// open starts a view-model on q. When prev is a view of the same row type
// its view-model is pointed at q instead, keeping its rendered rows.
func open[T any](ctx context.Context, engine *livequery.Engine, name string, spec viewmodel.Spec[T], q livequery.Query, sink ViewSink, prev View) (View, error) {
	if v, ok := prev.(*liveView[T]); ok {
		if err := v.Open(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to reopen %s view: %w", spec.Kind, err)
		}
		return v, nil
	}
	if sink == nil {
		return nil, fmt.Errorf("failed to reopen %s view: %w", name, ErrInvalidInput)
	}

	vm := viewmodel.New(engine, spec, sinkRenderer[T]{sink: sink})
	if err := vm.Open(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to open %s view: %w", spec.Kind, err)
	}
	return &liveView[T]{ViewModel: vm, name: name}, nil
}

type sinkRenderer[T any] struct {
	sink ViewSink
}

func (r sinkRenderer[T]) Render(p viewmodel.Patch[T]) {
	r.sink.Render(p.Section, p.Seq, p.Count, p.Ops)
}

func (r sinkRenderer[T]) Fail(err error) {
	r.sink.Fail(err)
}
