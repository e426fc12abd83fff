package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventCompleted EventStatus = "Completed"
	EventCancelled EventStatus = "Cancelled"
)

func (s EventStatus) Valid() bool {
	return s == EventUpcoming || s == EventCompleted || s == EventCancelled
}

type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyModerate Difficulty = "moderate"
	DifficultyHard     Difficulty = "hard"
	DifficultyExpert   Difficulty = "expert"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyModerate, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// Event is a group-scoped hike. ParticipantsCount mirrors the attendance records.
type Event struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID           primitive.ObjectID `bson:"group_id" json:"groupId"`
	Host              string             `bson:"host" json:"host"`
	Title             string             `bson:"title" json:"title"`
	Description       string             `bson:"description" json:"description"`
	Location          string             `bson:"location" json:"location"`
	Difficulty        Difficulty         `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	StartDateTime     time.Time          `bson:"start_date_time" json:"startDateTime"`
	Status            EventStatus        `bson:"status" json:"status"`
	ParticipantsCount int64              `bson:"participants_count" json:"participantsCount"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updatedAt"`
}

const EventParticipantsCount = "participants_count"

type AttendanceStatus string

const (
	AttendanceGoing      AttendanceStatus = "going"
	AttendanceInterested AttendanceStatus = "interested"
	AttendanceCancelled  AttendanceStatus = "cancelled"
)

// EventAttendance is unique per (event, user).
type EventAttendance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID   primitive.ObjectID `bson:"event_id" json:"eventId"`
	UserID    string             `bson:"user_id" json:"userId"`
	Status    AttendanceStatus   `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
