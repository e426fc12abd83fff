package models

// UserProfile is owned by the external user service. It is only read here
// to attach sender details to realtime payloads.
type UserProfile struct {
	ID        string `bson:"_id" json:"id"`
	Name      string `bson:"name" json:"name"`
	AvatarURL string `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
}
