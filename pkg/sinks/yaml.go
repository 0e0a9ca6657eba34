package sinks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/models"
)

// YAMLSink writes the same document as the json sink, encoded with yaml.v3. Records are
// built as yaml nodes so their keys keep column order.
type YAMLSink struct {
	fileTarget
	logger ectologger.Logger
}

func NewYAMLSink(dir string, logger ectologger.Logger) (*YAMLSink, error) {
	target, err := newFileTarget(dir)
	if err != nil {
		return nil, err
	}
	return &YAMLSink{fileTarget: target, logger: logger}, nil
}

func (s *YAMLSink) Name() string {
	return TargetYAML
}

func (s *YAMLSink) Export(ctx context.Context, export Export) error {
	for i := range export.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := EncodeYAML(newDocument(export, i))
		if err != nil {
			return err
		}

		path, err := s.write(export.FileName(i, "yaml"), data)
		if err != nil {
			return err
		}
		s.logger.WithContext(ctx).Debugf("Wrote %d records to %s", len(export.Pages[i]), path)
	}
	return nil
}

func EncodeYAML(doc Document) ([]byte, error) {
	metadata := mappingNode(
		"run_id", stringNode(doc.Metadata.RunID),
		"batch_label", stringNode(doc.Metadata.BatchLabel),
		"record_count", intNode(doc.Metadata.RecordCount),
		"export_date", stringNode(doc.Metadata.GeneratedAt.UTC().Format(time.RFC3339)),
		"page", intNode(doc.Metadata.Page),
		"page_count", intNode(doc.Metadata.PageCount),
	)

	records := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, record := range doc.Records {
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		record.Range(func(key string, v models.Value) bool {
			node.Content = append(node.Content, stringNode(key), valueNode(v))
			return true
		})
		records.Content = append(records.Content, node)
	}

	root := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{
		mappingNode("metadata", metadata, "records", records),
	}}

	data, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml export: %w", err)
	}
	return data, nil
}

func mappingNode(pairs ...any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(pairs); i += 2 {
		node.Content = append(node.Content, stringNode(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return node
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(n int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprint(n)}
}

func valueNode(v models.Value) *yaml.Node {
	switch v.Kind() {
	case models.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case models.KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v.Text()}
	case models.KindNumber:
		if text, _ := v.NumberText(); !strings.Contains(text, ".") {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: v.Text()}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.Text()}
	default:
		return stringNode(v.Text())
	}
}
