package format

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flatwatch/models"
)

// InlineDescriptionLimit is the longest description sent inline, counted in
// characters, not bytes; anything longer is hosted externally and linked.
const InlineDescriptionLimit = 1000

// truncatedDescriptionRunes is how much of an oversized description survives
// when no hosted page is available.
const truncatedDescriptionRunes = 500

// Message renders a listing as a Telegram HTML message. longDescURL, when
// non-empty, is the hosted page for an oversized description; with an
// oversized description and no URL the text is truncated instead.
func Message(l *models.Listing, longDescURL string) string {
	var lines []string

	title := objectTitle(l)
	lines = append(lines, "<b>"+html.EscapeString(title)+"</b>", "")

	lines = append(lines, "📍 <b>Location:</b> "+html.EscapeString(l.FullAddress()))
	lines = append(lines, "💰 <b>Price:</b> "+html.EscapeString(l.FormattedPrice()))
	if l.LivingSpace != nil {
		lines = append(lines, "📐 <b>Surface:</b> "+html.EscapeString(l.FormattedSurface()))
	}
	if l.AvailabilityDate != "" {
		lines = append(lines, "📅 <b>Available:</b> "+html.EscapeString(l.AvailabilityDate))
	}
	lines = append(lines, "")

	if desc := StripHTML(l.Description); desc != "" {
		// Rune-based, never byte-based: a cut through a multi-byte character
		// produces invalid UTF-8 that Telegram rejects.
		runes := []rune(desc)
		switch {
		case len(runes) <= InlineDescriptionLimit:
			lines = append(lines, "📝 <b>Description:</b>", html.EscapeString(desc))
		case longDescURL != "":
			lines = append(lines, "📝 <b>Full description:</b>",
				fmt.Sprintf("🔗 <a href=\"%s\">Click here to read</a>", longDescURL))
		default:
			lines = append(lines, "📝 <b>Description:</b>",
				html.EscapeString(string(runes[:truncatedDescriptionRunes]))+"...")
		}
		lines = append(lines, "")
	}

	if contact := contactBlock(l); contact != "" {
		lines = append(lines, contact)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Caption renders the short caption attached to a photo or media group.
func Caption(l *models.Listing) string {
	var lines []string
	if l.Rooms != nil {
		lines = append(lines, "<b>"+html.EscapeString(l.FormattedRooms())+"</b>")
	}
	lines = append(lines, "📍 "+html.EscapeString(l.FullAddress()))
	lines = append(lines, "💰 "+html.EscapeString(l.FormattedPrice()))
	if l.LivingSpace != nil {
		lines = append(lines, "📐 "+html.EscapeString(l.FormattedSurface()))
	}
	return strings.Join(lines, "\n")
}

// AlertHeader prefixes a notification message.
func AlertHeader() string {
	return "🔔 <b>New Property Alert!</b>\n\n"
}

func objectTitle(l *models.Listing) string {
	emoji := "🏠"
	switch l.ObjectCategory {
	case "APPT":
		emoji = "🏢"
	case "HOUSE":
		emoji = "🏡"
	case "PARK":
		emoji = "🅿️"
	case "COMMERCIAL":
		emoji = "🏪"
	}

	objectType := l.ObjectType
	if objectType == "" {
		objectType = "Property"
	}
	if l.Rooms != nil {
		return fmt.Sprintf("%s %s - %s", emoji, objectType, l.FormattedRooms())
	}
	return fmt.Sprintf("%s %s", emoji, objectType)
}

func contactBlock(l *models.Listing) string {
	if l.AgencyName == "" && l.AgencyPhone == "" && l.AgencyEmail == "" {
		return ""
	}
	var lines []string
	lines = append(lines, "🏢 <b>Contact:</b>")
	if l.AgencyName != "" {
		lines = append(lines, "Agency: "+html.EscapeString(l.AgencyName))
	}
	if l.AgencyPhone != "" {
		lines = append(lines, "📞 "+html.EscapeString(l.AgencyPhone))
	}
	if l.AgencyEmail != "" {
		lines = append(lines, "📧 "+html.EscapeString(l.AgencyEmail))
	}
	return strings.Join(lines, "\n")
}

// StripHTML flattens listing descriptions that arrive with markup into
// plain text. Malformed input is returned as-is.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<>") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
