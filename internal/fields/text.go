package fields

import "strings"

var partReplacer = strings.NewReplacer(
	"DB1l", "DB11",
	"DBll", "DB11",
	"—", "-",
	"–", "-",
)

// CleanPartNumber removes spaces and fixes the known DB11 misreads and dash variants
func CleanPartNumber(raw string) string {
	s := strings.TrimSpace(strings.ReplaceAll(raw, " ", ""))
	return partReplacer.Replace(s)
}

// CleanConfirmer removes spaces from handwritten initials
func CleanConfirmer(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, " ", ""))
}
