// ABOUTME: Demo data for local mode and the development server
// ABOUTME: Inserts a handful of records per kind when the database is empty
package db

import (
	"context"
	"fmt"

	"github.com/harperreed/devicedrop/models"
)

var seedPayloads = []models.Payload{
	models.DevicePayload{Name: "ThinkPad T480", Type: "laptop", Category: "computers", Condition: "good", Location: "Chicago"},
	models.DevicePayload{Name: "iPad Air 2", Type: "tablet", Category: "tablets", Condition: "fair", Location: "Evanston"},
	models.DevicePayload{Name: "Dell P2419H", Type: "monitor", Category: "displays", Condition: "like new", Location: "Oak Park"},
	models.DevicePayload{Name: "Pixel 4a", Type: "phone", Category: "phones", Condition: "good", Location: "Chicago"},
	models.RequestPayload{Requester: "Ana Ruiz", Organization: "Southside Library", DeviceType: "laptop", Quantity: 4, Message: "Homework lab"},
	models.RequestPayload{Requester: "Marcus Lee", DeviceType: "tablet", Quantity: 1, Message: "Telehealth appointments"},
	models.RequestPayload{Requester: "Priya Shah", Organization: "Refugee Welcome Center", DeviceType: "phone", Quantity: 10},
	models.UserPayload{Name: "Dana Kim", Email: "dana@example.org", Role: "donor", Organization: "Acme Corp"},
	models.UserPayload{Name: "Luis Ortega", Email: "luis@example.org", Role: "recipient"},
	models.UserPayload{Name: "Sam Park", Email: "sam@example.org", Role: "admin", Organization: "DeviceDrop"},
	models.TeamMemberPayload{Name: "Jordan Blake", JobTitle: "Director", Email: "jordan@example.org", Bio: "Runs logistics."},
	models.TeamMemberPayload{Name: "Riley Chen", JobTitle: "Volunteer Coordinator", Email: "riley@example.org"},
}

// Seed inserts demo records unless the database already has some. It
// returns the number of records created.
func (b *Backend) Seed(ctx context.Context) (int, error) {
	var count int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	for i, p := range seedPayloads {
		if _, err := b.Create(ctx, p.Kind(), fmt.Sprintf("seed-%d", i), p); err != nil {
			return i, fmt.Errorf("failed to seed %s: %w", p.Kind().Noun(), err)
		}
	}
	return len(seedPayloads), nil
}
