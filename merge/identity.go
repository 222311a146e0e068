package merge

import "github.com/Modou1ngom/cofidash/hierarchy"

// Alias fields scanned, in order, for an agency's name and code. AGENCE
// appears in both lists: the proxy uses it for either depending on the
// dataset.
var (
	nameFields = []string{"name", "AGENCE", "NOM_AGENCE", "NOM", "LIBELLE", "LIBELLE_AGENCE"}
	codeFields = []string{"code", "CODE_AGENCE", "CODE", "AGENCE"}

	// Any of these on a node makes it a container, never a merge target.
	containerMarkers = []string{"agencies", "totals", "service_points"}
)

// Identity is what a node is matched by. Code falls back to Name.
type Identity struct {
	Code     string
	Name     string
	NormCode string
	NormName string
}

// IdentityOf extracts the raw and normalized identifiers of a node.
func IdentityOf(n *hierarchy.Node) Identity {
	id := Identity{
		Name: Raw(firstText(n, nameFields)),
		Code: Raw(firstText(n, codeFields)),
	}
	if id.Code == "" {
		id.Code = id.Name
	}
	id.NormCode = Normalize(id.Code)
	id.NormName = Normalize(id.Name)
	return id
}

func firstText(n *hierarchy.Node, fields []string) string {
	for _, f := range fields {
		if v := Raw(n.Text(f)); v != "" {
			return v
		}
	}
	return ""
}

func (id Identity) Empty() bool {
	return id.Code == "" && id.Name == ""
}

// Key identifies the agency in observer events.
func (id Identity) Key() string {
	if id.Code != "" {
		return id.Code
	}
	return id.Name
}

// Candidates lists the distinct non-empty keys the cascade tried.
func (id Identity) Candidates() []string {
	var out []string
	seen := make(map[string]bool, 4)
	for _, k := range []string{id.Code, id.Name, id.NormCode, id.NormName} {
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// IsContainer reports whether n carries a marker collection field.
func IsContainer(n *hierarchy.Node) bool {
	for _, m := range containerMarkers {
		if n.Has(m) {
			return true
		}
	}
	return false
}

// AgencyOf returns the identity of n when n is a mergeable agency leaf:
// an object with a code or name and no marker collection field.
func AgencyOf(n *hierarchy.Node) (Identity, bool) {
	if !n.IsObject() || IsContainer(n) {
		return Identity{}, false
	}
	id := IdentityOf(n)
	return id, !id.Empty()
}
