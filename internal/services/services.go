// Package services holds the domain rules of the platform: groups,
// memberships, events, posts, messaging and notifications. Handlers call
// into it; it talks to storage only through repository.Store.
package services

import (
	"context"

	"github.com/AnshRaj112/trailhub-backend/internal/repository"
)

// Options carries the collaborators shared by every service. Nil fields get
// working defaults: an allow-nobody platform admin list, direct
// notifications, no realtime push and no caching.
type Options struct {
	Policy               *Policy
	Notifier             Notifier
	Broadcaster          Broadcaster
	RecentCache          RecentMessageCache
	Profiles             ProfileLookup
	RequireGroupApproval bool
}

// Services is the set of domain services wired to one store.
type Services struct {
	Policy        *Policy
	Groups        *GroupService
	Members       *MembershipService
	Events        *EventService
	Posts         *PostService
	Messaging     *MessagingService
	Notifications *NotificationService
	Rooms         *RoomAccess
}

func New(store repository.Store, opts Options) *Services {
	if opts.Policy == nil {
		opts.Policy = NewPolicy(nil)
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = nopBroadcaster{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NewStoreNotifier(store, opts.Broadcaster)
	}
	if opts.RecentCache == nil {
		opts.RecentCache = noRecentCache{}
	}
	if opts.Profiles == nil {
		opts.Profiles = NewProfileCache(store, nil, 0)
	}

	messaging := &MessagingService{
		store:       store,
		policy:      opts.Policy,
		broadcaster: opts.Broadcaster,
		recent:      opts.RecentCache,
		profiles:    opts.Profiles,
	}
	return &Services{
		Policy: opts.Policy,
		Groups: &GroupService{
			store:           store,
			policy:          opts.Policy,
			notifier:        opts.Notifier,
			broadcaster:     opts.Broadcaster,
			recent:          opts.RecentCache,
			requireApproval: opts.RequireGroupApproval,
		},
		Members: &MembershipService{
			store:       store,
			policy:      opts.Policy,
			notifier:    opts.Notifier,
			broadcaster: opts.Broadcaster,
		},
		Events: &EventService{
			store:    store,
			policy:   opts.Policy,
			notifier: opts.Notifier,
		},
		Posts: &PostService{
			store:    store,
			policy:   opts.Policy,
			notifier: opts.Notifier,
		},
		Messaging:     messaging,
		Notifications: NewNotificationService(store),
		Rooms:         &RoomAccess{messaging: messaging},
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(context.Context, string, string, interface{}) error { return nil }
func (nopBroadcaster) Evict(context.Context, string, string) error                { return nil }
