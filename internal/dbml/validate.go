package dbml

import (
	"sort"
	"strings"
)

func (p *parser) validate() error {
	s := p.schema

	byID := make(map[string]int, len(s.Tables))
	aliases := make(map[string]int)
	for i, t := range s.Tables {
		id := t.ID()
		if _, ok := byID[id]; ok {
			return p.errorf(p.tableToks[i], "table %q already exists", id)
		}
		byID[id] = i
	}
	for i, t := range s.Tables {
		if t.Alias == "" {
			continue
		}
		if _, ok := aliases[t.Alias]; ok {
			return p.errorf(p.tableToks[i], "alias %q is already used", t.Alias)
		}
		if j, ok := byID[t.Alias]; ok && j != i {
			return p.errorf(p.tableToks[i], "alias %q conflicts with table %q", t.Alias, t.Alias)
		}
		aliases[t.Alias] = i
	}

	for i, t := range s.Tables {
		seen := make(map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			if seen[c.Name] {
				return p.errorf(p.colToks[i][j], "column %q already exists in table %q", c.Name, t.ID())
			}
			seen[c.Name] = true
		}
		for j, idx := range t.Indexes {
			for _, c := range idx.Columns {
				if !c.Expression && !seen[c.Value] {
					return p.errorf(p.indexToks[i][j], "column %q not found in table %q", c.Value, t.ID())
				}
			}
		}
	}

	enums := make(map[string]bool, len(s.Enums))
	for i, e := range s.Enums {
		if enums[e.ID()] {
			return p.errorf(p.enumToks[i], "enum %q already exists", e.ID())
		}
		enums[e.ID()] = true
	}

	resolve := func(schema, name string) (int, bool) {
		if i, ok := byID[TableID(schema, name)]; ok {
			return i, true
		}
		if schema == "" {
			i, ok := aliases[name]
			return i, ok
		}
		return 0, false
	}

	seenRefs := make(map[string]bool, len(s.Refs))
	for i := range s.Refs {
		ref := &s.Refs[i]
		tok := p.refToks[i]
		for k := range ref.Endpoints {
			ep := &ref.Endpoints[k]
			ti, ok := resolve(ep.Schema, ep.Table)
			if !ok {
				return p.errorf(tok, "table %q not found", TableID(ep.Schema, ep.Table))
			}
			t := &s.Tables[ti]
			ep.Schema, ep.Table = t.Schema, t.Name
			for _, c := range ep.Columns {
				if t.Column(c) == nil {
					return p.errorf(tok, "column %q not found in table %q", c, t.ID())
				}
			}
		}
		a, b := ref.Endpoints[0], ref.Endpoints[1]
		if len(a.Columns) != len(b.Columns) {
			return p.errorf(tok, "two endpoints have unequal number of columns")
		}
		ka, kb := endpointKey(a), endpointKey(b)
		if ka == kb {
			return p.errorf(tok, "two endpoints are the same")
		}
		pair := []string{ka, kb}
		sort.Strings(pair)
		key := strings.Join(pair, "|")
		if seenRefs[key] {
			return p.errorf(tok, "references with same endpoints exist")
		}
		seenRefs[key] = true
	}

	for i := range s.TableGroups {
		g := &s.TableGroups[i]
		for j := range g.Tables {
			tr := &g.Tables[j]
			ti, ok := resolve(tr.Schema, tr.Name)
			if !ok {
				return p.errorf(p.groupToks[i][j], "table %q not found", TableID(tr.Schema, tr.Name))
			}
			tr.Schema, tr.Name = s.Tables[ti].Schema, s.Tables[ti].Name
		}
	}
	return nil
}

func endpointKey(e Endpoint) string {
	return e.TableID() + "(" + strings.Join(e.Columns, ",") + ")"
}
