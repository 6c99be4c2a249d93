package source

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/clif-consortium/clifmeds/internal/model"
	"github.com/clif-consortium/clifmeds/internal/normalize"
)

// eventTable is the only d_items.linksto table the medication builders read.
const eventTable = "inputevents"

// inputEventColumns must be present in any inputevents extract.
var inputEventColumns = []string{
	"subject_id", "hadm_id", "starttime", "endtime", "itemid",
	"amount", "amountuom", "rate", "rateuom", "linkorderid",
	"ordercategoryname", "ordercomponenttypedescription", "ordercategorydescription",
	"statusdescription",
}

// selectItems keeps the d_items rows of itemIDs that link to inputevents.
// Items stored in other event tables or absent from d_items are logged and
// skipped.
func selectItems(items []model.ItemRow, itemIDs []int64, log zerolog.Logger) map[int64]model.ItemRow {
	wanted := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	out := make(map[int64]model.ItemRow, len(itemIDs))
	byTable := make(map[string][]int64)
	for _, it := range items {
		if !wanted[it.ItemID] {
			continue
		}
		linksTo := strings.ToLower(normalize.Deref(it.LinksTo))
		if linksTo == eventTable {
			out[it.ItemID] = it
			continue
		}
		byTable[linksTo] = append(byTable[linksTo], it.ItemID)
	}
	for table, ids := range byTable {
		log.Warn().Str("linksto", table).Ints64("itemids", ids).Msg("skipping items stored outside inputevents")
	}

	var missing []int64
	for _, id := range itemIDs {
		if _, ok := out[id]; !ok && !contains(byTable, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		log.Warn().Ints64("itemids", missing).Msg("mapped items not found in d_items")
	}
	log.Info().Int("items", len(out)).Msg("resolved items to fetch from inputevents")
	return out
}

func contains(byTable map[string][]int64, id int64) bool {
	for _, ids := range byTable {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
	}
	return false
}

// toInterval converts a source row into a RawInterval with the item's label
// and category joined in.
func toInterval(row *model.InputEventRow, seq int64, item model.ItemRow) model.RawInterval {
	iv := model.FromInputEvent(row, seq)
	iv.Label = normalize.Deref(item.Label)
	iv.ItemCategory = normalize.NilIfBlank(item.Category)
	return iv
}
