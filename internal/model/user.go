package model

import "time"

type User struct {
	TelegramID       int64
	Username         string
	Handle           string
	ReferrerID       *int64
	Referrals        int
	RegistrationDate time.Time
}

type UserReferral struct {
	TelegramID       int64
	TelegramUsername string
	Handle           string
	ReferralCount    int
	RegistrationDate time.Time
}

// RegistrationResult reports what the registry actually did inside the
// atomic unit: whether a row was inserted and whether the referrer row
// received its credit.
type RegistrationResult struct {
	Inserted         bool
	ReferrerCredited bool
}

// ReportRow is one line of the admin referral report.
type ReportRow struct {
	TelegramID  int64
	Username    string
	Handle      string
	Referrals   int
	ReferredIDs []int64
}
