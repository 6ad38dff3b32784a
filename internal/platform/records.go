package platform

import (
	"locinet/internal/evo"
	"locinet/internal/model"
	"locinet/internal/scoring"
	"locinet/internal/subnet"
)

func toModelDiagnostics(in []evo.GenerationDiagnostics) []model.GenerationDiagnostics {
	out := make([]model.GenerationDiagnostics, 0, len(in))
	for _, d := range in {
		out = append(out, model.GenerationDiagnostics{
			Generation:          d.Generation,
			PopulationDensity:   d.PopulationDensity,
			MeanDensity:         d.MeanDensity,
			BestDensity:         d.BestDensity,
			MinDensity:          d.MinDensity,
			RelativeChange:      d.RelativeChange,
			Mutations:           d.Mutations,
			Crossovers:          d.Crossovers,
			SelectionPoolSize:   d.SelectionPoolSize,
			DistinctSubnetworks: d.DistinctSubnetworks,
		})
	}
	return out
}

func toRankedRecords(in []scoring.RankedSubnetwork) []model.RankedSubnetworkRecord {
	out := make([]model.RankedSubnetworkRecord, 0, len(in))
	for _, r := range in {
		pairs := make([]model.EdgeRecord, 0, len(r.Pairs))
		for _, p := range r.Pairs {
			rec := model.EdgeRecord{From: p.From, To: p.To}
			if p.Weight != nil {
				w := *p.Weight
				rec.Weight = &w
			}
			pairs = append(pairs, rec)
		}
		out = append(out, model.RankedSubnetworkRecord{
			Rank:      r.Rank,
			Density:   r.Density,
			Count:     r.Count,
			Frequency: r.Frequency,
			Nodes:     r.Subnetwork.Nodes(),
			Pairs:     pairs,
		})
	}
	return out
}

func toGeneScoreRecords(in []scoring.GeneScore) []model.GeneScoreRecord {
	out := make([]model.GeneScoreRecord, 0, len(in))
	for _, s := range in {
		out = append(out, model.GeneScoreRecord{Gene: s.Gene, Locus: s.Locus, Score: s.Score, Samples: s.Samples})
	}
	return out
}

func toEdgeRecords(in []subnet.Edge) []model.EdgeRecord {
	out := make([]model.EdgeRecord, 0, len(in))
	for _, e := range in {
		w := e.Weight
		out = append(out, model.EdgeRecord{From: e.From, To: e.To, Weight: &w})
	}
	return out
}

func toSubnetworkRecords(pop subnet.Population) []model.SubnetworkRecord {
	out := make([]model.SubnetworkRecord, 0, len(pop))
	for _, s := range pop {
		out = append(out, model.SubnetworkRecord{
			Nodes:     s.Nodes(),
			Density:   subnet.EdgeDensity(s),
			EdgeCount: subnet.EdgeCount(s),
		})
	}
	return out
}
