package fields

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English name for month 1..12
func MonthName(month int) (string, bool) {
	if month < 1 || month > len(monthNames) {
		return "", false
	}
	return monthNames[month-1], true
}
