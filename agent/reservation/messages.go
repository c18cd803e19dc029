package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/cotah/tuxeai-app/storage"
)

func intentPrompt(message string) string {
	return fmt.Sprintf(`Analyze this message and determine if it's a reservation request. Extract date, time, party size, and special requests.

Message: %q

Respond in JSON format:
{
  "isReservation": true/false,
  "date": "ISO date string if found",
  "partySize": number if found,
  "specialRequests": "any special requests mentioned"
}`, message)
}

func confirmationText(res *storage.Reservation, c *storage.Customer, r *storage.Restaurant) string {
	date := localDate(res.ReservationDate, r.Timezone)

	var b strings.Builder
	b.WriteString("Reservation Confirmed!\n\n")
	fmt.Fprintf(&b, "Hi %s!\n\n", nameOrThere(c.Name))
	fmt.Fprintf(&b, "Your reservation at %s is confirmed:\n\n", r.Name)
	fmt.Fprintf(&b, "Date: %s\n", date.Format("Mon, Jan 2, 2006"))
	fmt.Fprintf(&b, "Time: %s\n", date.Format("15:04"))
	fmt.Fprintf(&b, "Party Size: %d people\n", res.PartySize)
	if res.SpecialRequests != "" {
		fmt.Fprintf(&b, "Special Requests: %s\n", res.SpecialRequests)
	}
	b.WriteString("\nWe look forward to seeing you! If you need to make changes, please reply to this message.\n")
	if r.Address != "" {
		fmt.Fprintf(&b, "\nAddress: %s", r.Address)
	}
	if r.Phone != "" {
		fmt.Fprintf(&b, "\nPhone: %s", r.Phone)
	}
	return strings.TrimRight(b.String(), "\n")
}

func reminderText(res *storage.Reservation, c *storage.Customer, r *storage.Restaurant) string {
	date := localDate(res.ReservationDate, r.Timezone)

	var b strings.Builder
	b.WriteString("Reservation Reminder\n\n")
	fmt.Fprintf(&b, "Hi %s!\n\n", nameOrThere(c.Name))
	fmt.Fprintf(&b, "This is a friendly reminder about your reservation at %s:\n\n", r.Name)
	fmt.Fprintf(&b, "Date: %s\n", date.Format("Mon, Jan 2, 2006"))
	fmt.Fprintf(&b, "Time: %s\n", date.Format("15:04"))
	fmt.Fprintf(&b, "Party Size: %d people\n", res.PartySize)
	b.WriteString("\nWe're excited to see you! If you need to cancel or make changes, please let us know as soon as possible.\n")
	if r.Address != "" {
		fmt.Fprintf(&b, "\nAddress: %s", r.Address)
	}
	return strings.TrimRight(b.String(), "\n")
}

// localDate renders t in the restaurant's timezone, falling back to UTC.
func localDate(t time.Time, tz string) time.Time {
	if tz == "" {
		return t.UTC()
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t.UTC()
	}
	return t.In(loc)
}

func nameOrThere(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}
