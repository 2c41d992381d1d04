package formation

import (
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/fitness"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/provider"
)

// BuildAdjacency connects every pair of members whose compatibility exceeds
// the edge threshold. Every member has an entry, possibly empty.
func BuildAdjacency(members []provider.Provider) Adjacency {
	adj := make(Adjacency, len(members))
	for _, p := range members {
		adj[p.ID] = []string{}
	}
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if fitness.Connected(members[i], members[j]) {
				a, b := members[i].ID, members[j].ID
				adj[a] = append(adj[a], b)
				adj[b] = append(adj[b], a)
			}
		}
	}
	return adj
}

// Connect adds p to adj, linking it to every compatible peer.
func Connect(adj Adjacency, p provider.Provider, peers []provider.Provider) {
	if _, ok := adj[p.ID]; !ok {
		adj[p.ID] = []string{}
	}
	for _, q := range peers {
		if q.ID == p.ID || adj.Has(p.ID, q.ID) {
			continue
		}
		if fitness.Connected(p, q) {
			adj[p.ID] = append(adj[p.ID], q.ID)
			adj[q.ID] = append(adj[q.ID], p.ID)
		}
	}
}

// Disconnect removes id and every edge touching it.
func Disconnect(adj Adjacency, id string) {
	for _, peer := range adj[id] {
		adj[peer] = without(adj[peer], id)
	}
	delete(adj, id)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
