package bot

import (
	"strings"
	"testing"

	"github.com/bio065/biobot/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestBuildReport(t *testing.T) {
	rows := []*model.ReportRow{
		{TelegramID: 100, Username: "Alice", Handle: "alice", Referrals: 2, ReferredIDs: []int64{200, 400}},
		{TelegramID: 200, Username: "Bob", Referrals: 0},
	}

	report := string(BuildReport(2, rows))

	assert.Contains(t, report, "Total registered users: 2")
	assert.Contains(t, report, "1. Alice (@alice): 2 referrals")
	assert.Contains(t, report, "referred: 200, 400")
	assert.Contains(t, report, "2. Bob: 0 referrals")

	// Rows render in the order the registry sorted them.
	assert.Less(t,
		strings.Index(report, "Alice"),
		strings.Index(report, "Bob"))
}

func TestBuildReport_Empty(t *testing.T) {
	report := string(BuildReport(0, nil))
	assert.Contains(t, report, "Total registered users: 0")
}

func TestReportFileName(t *testing.T) {
	first := reportFileName()
	second := reportFileName()

	assert.True(t, strings.HasPrefix(first, "referral-report-"))
	assert.True(t, strings.HasSuffix(first, ".txt"))
	assert.NotEqual(t, first, second)
}
