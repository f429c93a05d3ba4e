package constants

const (
	// SelectBackfillCandidates finds bookings whose detail-derived fields are still missing.
	// Written with '?' bindvars; callers Rebind for the active driver.
	SelectBackfillCandidates = `
	SELECT booking_ref FROM bookings
	WHERE (
		((accommodation_name IS NULL OR accommodation_name = '') AND booking_type <> ?)
		OR province IS NULL
	)
	AND UPPER(status) NOT IN (?, ?, ?)
	AND COALESCE(pickup_date, arrival_date) BETWEEN ? AND ?
	ORDER BY COALESCE(pickup_date, arrival_date) ASC
	LIMIT ?
	`
)
