package api

import (
	"github.com/Modou1ngom/cofidash/merge"
	"github.com/Modou1ngom/cofidash/source"
)

// datasetTargets lists, per dataset, the merge passes applied to it in
// order. Datasets absent from the map are served as fetched.
var datasetTargets = map[source.Dataset][]merge.Target{
	source.DatasetClients:          {merge.TargetClient},
	source.DatasetProduction:       {merge.TargetProduction},
	source.DatasetPrepaidCardSales: {merge.TargetPrepaidCard},
	source.DatasetEncours:          {merge.TargetSavings},
}

// TargetsFor returns the merge plan of ds.
func TargetsFor(ds source.Dataset) []merge.Target {
	return datasetTargets[ds]
}
