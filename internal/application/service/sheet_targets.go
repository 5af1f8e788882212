package service

import "github.com/bestat/tatekae-seisan-bot/internal/domain/entity"

// SheetTargets routes applicants to spreadsheet tabs. Users without an
// explicit mapping use Default.
type SheetTargets struct {
	Default entity.SheetTarget
	PerUser map[string]entity.SheetTarget
}

// ForUser returns the configured target for an applicant
func (t SheetTargets) ForUser(userID string) entity.SheetTarget {
	if target, ok := t.PerUser[userID]; ok && !target.IsZero() {
		return target
	}
	return t.Default
}

// All returns the default target followed by each distinct per-user target
func (t SheetTargets) All() []entity.SheetTarget {
	seen := map[entity.SheetTarget]bool{t.Default: true}
	all := []entity.SheetTarget{t.Default}
	for _, target := range t.PerUser {
		if target.IsZero() || seen[target] {
			continue
		}
		seen[target] = true
		all = append(all, target)
	}
	return all
}

// ForRecord resolves where a stored record must be updated. The configured
// target wins when the record lives in the same spreadsheet (keeping its gid
// for links) but the record's own tab is used. Records written under an older
// configuration fall back to their stored spreadsheet and tab, without a gid.
func (t SheetTargets) ForRecord(rec *entity.RequestRecord) entity.SheetTarget {
	configured := t.ForUser(rec.ApplicantID)
	if rec.SpreadsheetID == "" {
		return configured
	}
	if rec.SpreadsheetID == configured.SpreadsheetID {
		if rec.TabName != "" && rec.TabName != configured.TabName {
			configured.TabName = rec.TabName
		}
		return configured
	}
	return entity.SheetTarget{
		SpreadsheetID: rec.SpreadsheetID,
		TabName:       rec.TabName,
	}
}
