package services

import "tripwise-backend/internal/livequery"

func usersPath() livequery.Path {
	return livequery.Collection("users")
}

func tripsPath(userID string) livequery.Path {
	return livequery.Collection("users", userID, "trips")
}

func timelinePath(userID, tripID string) livequery.Path {
	return livequery.Collection("users", userID, "trips", tripID, "timeline")
}

func sharedTripsPath() livequery.Path {
	return livequery.Collection("shared_trips")
}

func friendsPath(userID string) livequery.Path {
	return livequery.Collection("users", userID, "friends")
}

func conversationsPath(userID string) livequery.Path {
	return livequery.Collection("users", userID, "conversations")
}

func messagesPath(conversationID string) livequery.Path {
	return livequery.Collection("conversations", conversationID, "messages")
}
