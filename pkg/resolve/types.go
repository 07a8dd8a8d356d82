package resolve

import "github.com/coolbeans/kgindex/pkg/record"

// TypeSummaries maps every record with known types to the primary name of
// its most popular type. Types without a record of their own are ignored.
func TypeSummaries(records []record.ResourceRecord) map[string]string {
	byID := make(map[string]*record.ResourceRecord, len(records))
	for index := range records {
		byID[records[index].ID] = &records[index]
	}

	summaries := make(map[string]string)
	for _, resource := range records {
		var best *record.ResourceRecord
		for _, typeID := range resource.Types {
			typeRecord, exists := byID[typeID]
			if !exists {
				continue
			}
			if best == nil || morePopular(typeRecord.Popularity, typeRecord.ID, best.Popularity, best.ID) {
				best = typeRecord
			}
		}
		if best != nil {
			summaries[resource.ID] = best.PrimaryName
		}
	}
	return summaries
}
