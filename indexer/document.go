package indexer

import (
	"github.com/erichchampion/codegraph/index"
	"github.com/erichchampion/codegraph/model"
)

// DocumentFromNode flattens a graph node into the field bag the indexes
// consume. Well-known fields use fixed names; node metadata is merged in
// without overriding them.
func DocumentFromNode(n model.GraphNode) index.Document {
	doc := index.Document{
		"id":         string(n.ID),
		"name":       n.Name,
		"type":       string(n.Type),
		"file_path":  n.FilePath,
		"start_line": n.StartLine,
		"end_line":   n.EndLine,
	}
	if n.ModuleName != "" {
		doc["module"] = n.ModuleName
	}
	if n.Language != "" {
		doc["language"] = n.Language
	}
	if !n.LastModified.IsZero() {
		doc["last_modified"] = n.LastModified.Unix()
	}
	for k, v := range n.Metadata {
		if _, taken := doc[k]; !taken {
			doc[k] = v
		}
	}
	return doc
}
