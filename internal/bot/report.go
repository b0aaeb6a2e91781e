package bot

import (
	"fmt"
	"strings"

	"github.com/bio065/biobot/internal/model"

	"github.com/google/uuid"
)

// BuildReport renders the admin referral report: total registered
// count, then one line per user sorted by referral count descending.
func BuildReport(total int, rows []*model.ReportRow) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "Referral report\n")
	fmt.Fprintf(&b, "Total registered users: %d\n\n", total)

	for i, row := range rows {
		name := row.Username
		if row.Handle != "" {
			name = fmt.Sprintf("%s (@%s)", row.Username, row.Handle)
		}
		fmt.Fprintf(&b, "%d. %s: %d referrals\n", i+1, name, row.Referrals)
		if len(row.ReferredIDs) > 0 {
			ids := make([]string, len(row.ReferredIDs))
			for j, id := range row.ReferredIDs {
				ids[j] = fmt.Sprintf("%d", id)
			}
			fmt.Fprintf(&b, "   referred: %s\n", strings.Join(ids, ", "))
		}
	}

	return []byte(b.String())
}

func reportFileName() string {
	return fmt.Sprintf("referral-report-%s.txt", uuid.NewString())
}
