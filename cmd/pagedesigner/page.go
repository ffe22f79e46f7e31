package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pdsdk/pagedesigner/internal/language"
	"github.com/pdsdk/pagedesigner/internal/pagestore"
	"github.com/pdsdk/pagedesigner/internal/protocol"
)

func newPageCommand() *cobra.Command {
	pageCmd := &cobra.Command{
		Use:   "page",
		Short: "Seed and inspect stored pages",
	}
	pageCmd.PersistentFlags().String("store", "", "Page store path (overrides store.path)")

	seedCmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a page, its palette and labels from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageSeed,
	}
	showCmd := &cobra.Command{
		Use:   "show <page-id>",
		Short: "Print the component tree of a page",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageShow,
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored pages",
		Args:  cobra.NoArgs,
		RunE:  runPageList,
	}
	deleteCmd := &cobra.Command{
		Use:   "delete <page-id>",
		Short: "Delete a page and its components",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageDelete,
	}
	pageCmd.AddCommand(seedCmd, showCmd, listCmd, deleteCmd)
	return pageCmd
}

// seedDocument is the file format of page seed.
type seedDocument struct {
	Page           json.RawMessage                   `json:"page"`
	ComponentTypes map[string]protocol.ComponentType `json:"componentTypes"`
	Labels         map[string]string                 `json:"labels"`
}

// openStore opens the store named by --store or the config. Read-only
// stores must already exist.
func openStore(cmd *cobra.Command, readOnly bool) (*pagestore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Store.Path
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		path = v
	}
	store, err := pagestore.Open(pagestore.Options{Path: path, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to open page store: %w", err)
	}
	return store, nil
}

func runPageSeed(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)

	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	doc, err := parseSeed(content)
	if err != nil {
		return err
	}
	page, err := pagestore.ParsePage(doc.Page)
	if err != nil {
		return err
	}

	store, err := openStore(cmd, false)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if err := store.PutPage(ctx, page); err != nil {
		return fmt.Errorf("store page %s: %w", page.ID, err)
	}
	for id, ct := range doc.ComponentTypes {
		if ct.ID == "" {
			ct.ID = id
		}
		if err := store.PutComponentType(ctx, ct); err != nil {
			return err
		}
	}
	for key, value := range doc.Labels {
		if err := store.SetLabel(ctx, key, value); err != nil {
			return err
		}
	}

	return out.Success(fmt.Sprintf("Seeded page %s (%d components)", page.ID, len(page.Components)), map[string]any{
		"page":           page.ID,
		"components":     len(page.Components),
		"componentTypes": len(doc.ComponentTypes),
		"labels":         len(doc.Labels),
	})
}

// parseSeed accepts JSON or YAML. YAML is converted to JSON first so
// both formats share the JSON field names.
func parseSeed(content []byte) (seedDocument, error) {
	var doc seedDocument
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return doc, fmt.Errorf("seed file is empty")
	}

	raw := []byte(trimmed)
	if !json.Valid(raw) {
		var yamlData any
		if err := yaml.Unmarshal(raw, &yamlData); err != nil {
			return doc, fmt.Errorf("invalid YAML seed: %w", err)
		}
		encoded, err := json.Marshal(normalizeYAML(yamlData))
		if err != nil {
			return doc, err
		}
		raw = encoded
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("invalid seed document: %w", err)
	}
	if len(doc.Page) == 0 {
		return doc, fmt.Errorf("seed document has no page")
	}
	return doc, nil
}

func normalizeYAML(value any) any {
	return normalizeYAMLWithDepth(value, 0, 1024)
}

func normalizeYAMLWithDepth(value any, depth, maxDepth int) any {
	if depth >= maxDepth {
		return fmt.Sprint(value)
	}

	switch v := value.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for key, val := range v {
			keyStr, ok := key.(string)
			if !ok {
				keyStr = fmt.Sprint(key)
			}
			m[keyStr] = normalizeYAMLWithDepth(val, depth+1, maxDepth)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, val := range v {
			m[key] = normalizeYAMLWithDepth(val, depth+1, maxDepth)
		}
		return m
	case []any:
		result := make([]any, len(v))
		for i, elem := range v {
			result[i] = normalizeYAMLWithDepth(elem, depth+1, maxDepth)
		}
		return result
	default:
		return v
	}
}

func runPageShow(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	store, err := openStore(cmd, true)
	if err != nil {
		return err
	}
	defer store.Close()

	page, err := store.Page(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if out.jsonMode {
		return out.Print(map[string]any{
			"id":         page.ID,
			"rootId":     page.RootID,
			"locale":     page.Locale,
			"components": page.Components,
		})
	}
	writeTree(os.Stdout, page)
	return nil
}

// writeTree prints the page as an indented outline:
//
//	root (layout)
//	  [main]
//	    hero (banner)
func writeTree(w io.Writer, page pagestore.Page) {
	header := page.ID
	if page.Locale != "" {
		if loc, err := language.ParseLocale(page.Locale); err == nil {
			header += " (" + loc.Tag + ", " + loc.EnglishName + ")"
		} else {
			header += " (" + page.Locale + ")"
		}
	}
	fmt.Fprintln(w, header)

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		indent := strings.Repeat("  ", depth)
		comp, ok := page.Components[id]
		if !ok {
			fmt.Fprintf(w, "%s%s (missing)\n", indent, id)
			return
		}
		fmt.Fprintf(w, "%s%s (%s)\n", indent, comp.ID, comp.TypeID)
		for _, region := range comp.Regions {
			fmt.Fprintf(w, "%s  [%s]\n", indent, region.ID)
			for _, child := range region.ComponentIDs {
				walk(child, depth+2)
			}
		}
	}
	walk(page.RootID, 1)
}

func runPageList(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	store, err := openStore(cmd, true)
	if err != nil {
		return err
	}
	defer store.Close()

	pages, err := store.ListPages(cmd.Context())
	if err != nil {
		return err
	}
	if out.jsonMode {
		if pages == nil {
			pages = []pagestore.PageSummary{}
		}
		return out.Print(pages)
	}
	if len(pages) == 0 {
		fmt.Fprintln(os.Stdout, "No pages stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tROOT\tLOCALE\tCOMPONENTS\tUPDATED")
	for _, p := range pages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.RootID, p.Locale, p.Components, p.UpdatedAt)
	}
	return w.Flush()
}

func runPageDelete(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	store, err := openStore(cmd, false)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeletePage(cmd.Context(), args[0]); err != nil {
		return err
	}
	return out.Success(fmt.Sprintf("Deleted page %s", args[0]), map[string]any{"page": args[0]})
}
