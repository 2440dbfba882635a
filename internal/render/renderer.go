// ABOUTME: Renders outbound message descriptors into customer-facing text
// ABOUTME: Pure function of descriptor, vocabulary, and business profile; safe to retry

package render

import (
	"fmt"
	"strings"

	"github.com/chatfront/waba-gateway/internal/flow"
	"github.com/chatfront/waba-gateway/internal/registry"
)

// currencySymbols maps common currency codes to their symbols. Unknown
// codes fall back to "CODE amount".
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

// Render converts an abstract outbound descriptor into the text sent to
// the customer, applying the vertical's vocabulary and the business's help
// contact footer.
func Render(desc flow.Descriptor, voc *flow.Vocabulary, biz *registry.BusinessProfile) string {
	var b strings.Builder

	if desc.Invalid != "" {
		b.WriteString("⚠️ ")
		b.WriteString(capitalize(desc.Invalid))
		b.WriteString("\n\n")
	}

	switch desc.Kind {
	case flow.KindCatalog:
		renderCatalog(&b, desc, voc, biz)
	case flow.KindSelectItem:
		renderSelectItem(&b, desc, voc, biz)
	case flow.KindQuantity:
		fmt.Fprintf(&b, "How many %s of %s would you like?", voc.UnitNoun, desc.ItemName)
	case flow.KindDetails:
		renderDetails(&b, desc, voc)
	case flow.KindInstructions:
		fmt.Fprintf(&b, "Any special instructions for your %s? Reply %q to skip.", voc.OrderVerb, flow.InstructionsNone)
	case flow.KindSummary:
		renderSummary(&b, desc, voc, biz, false)
	case flow.KindCompleted:
		renderSummary(&b, desc, voc, biz, true)
	case flow.KindCancelled:
		fmt.Fprintf(&b, "No problem, your %s has been cancelled. Message us any time to start again. 👋", voc.OrderVerb)
	}

	if footer := helpFooter(biz); footer != "" {
		b.WriteString("\n\n")
		b.WriteString(footer)
	}

	return b.String()
}

// renderCatalog lists the catalog with prices and the order invitation
func renderCatalog(b *strings.Builder, desc flow.Descriptor, voc *flow.Vocabulary, biz *registry.BusinessProfile) {
	fmt.Fprintf(b, "%s Welcome to %s!\n\n%s:\n", voc.CatalogEmoji, biz.DisplayName, voc.CatalogTitle)
	for i, item := range desc.Items {
		fmt.Fprintf(b, "%d. %s — %s\n", i+1, item.Name, money(item.PriceMinor, biz.Currency))
	}
	fmt.Fprintf(b, "\nReply %q to start your %s.", voc.OrderVerb, voc.OrderVerb)
}

// renderSelectItem shows the numbered pick list
func renderSelectItem(b *strings.Builder, desc flow.Descriptor, voc *flow.Vocabulary, biz *registry.BusinessProfile) {
	fmt.Fprintf(b, "Which %s would you like? Reply with a number:\n", voc.ItemNoun)
	for i, item := range desc.Items {
		fmt.Fprintf(b, "%d. %s — %s\n", i+1, item.Name, money(item.PriceMinor, biz.Currency))
	}
}

// renderDetails asks for the vertical's details-step answer
func renderDetails(b *strings.Builder, desc flow.Descriptor, voc *flow.Vocabulary) {
	if len(desc.Options) > 0 {
		fmt.Fprintf(b, "Please pick a %s:\n", voc.Details.Label)
		for i, opt := range desc.Options {
			fmt.Fprintf(b, "%d. %s\n", i+1, opt)
		}
		return
	}
	fmt.Fprintf(b, "Please send your %s.", voc.Details.Label)
}

// renderSummary prints the order summary; done switches between the
// confirmation question and the completed receipt
func renderSummary(b *strings.Builder, desc flow.Descriptor, voc *flow.Vocabulary, biz *registry.BusinessProfile, done bool) {
	if done {
		b.WriteString("✅ Order confirmed! Here's your receipt:\n\n")
	} else {
		b.WriteString("🧾 Your order:\n\n")
	}

	for _, item := range desc.Cart {
		fmt.Fprintf(b, "%d × %s — %s\n", item.Quantity, item.Name, money(int64(item.Quantity)*item.UnitPriceMinor, biz.Currency))
	}
	fmt.Fprintf(b, "\nTotal: %s\n", money(desc.TotalMinor, biz.Currency))
	if desc.Details != "" {
		fmt.Fprintf(b, "%s: %s\n", capitalize(voc.Details.Label), desc.Details)
	}

	if !done {
		b.WriteString("\nReply \"yes\" to confirm and pay on delivery, or \"no\" to cancel.")
	} else {
		b.WriteString("\nThank you! 🎉")
	}
}

// helpFooter builds the help contact line, falling back to phone-only when
// no help email is configured
func helpFooter(biz *registry.BusinessProfile) string {
	switch {
	case biz.HelpEmail != "" && biz.HelpPhone != "":
		return fmt.Sprintf("Need help? Email %s or call %s.", biz.HelpEmail, biz.HelpPhone)
	case biz.HelpPhone != "":
		return fmt.Sprintf("Need help? Call %s.", biz.HelpPhone)
	case biz.HelpEmail != "":
		return fmt.Sprintf("Need help? Email %s.", biz.HelpEmail)
	}
	return ""
}

// money formats minor units with the business currency
func money(minor int64, currency string) string {
	amount := fmt.Sprintf("%d.%02d", minor/100, minor%100)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount
	}
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}

// capitalize upper-cases the first letter of a prompt fragment
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
