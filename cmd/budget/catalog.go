package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/innovacioninteligente/dochevi-construc-sub000/constants"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/catalog"
	"github.com/innovacioninteligente/dochevi-construc-sub000/internal/common"
)

var (
	catalogDir    string
	catalogModel  string
	searchLimit   int
	searchKind    string
	searchChapter string
)

func init() {
	catalogCmd.PersistentFlags().StringVar(&catalogDir, "dir", "", "persistent index directory (defaults to CATALOG_DIR)")
	catalogCmd.PersistentFlags().StringVar(&catalogModel, "embedding-model", "", "embedding model, or \"hash\" for the offline embedder (defaults to EMBEDDING_MODEL)")
	catalogSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum results")
	catalogSearchCmd.Flags().StringVar(&searchKind, "kind", "", "restrict to labor or material")
	catalogSearchCmd.Flags().StringVar(&searchChapter, "chapter", "", "chapter hint prepended to the query")

	catalogCmd.AddCommand(catalogImportCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the price catalog index",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Load a price book into the persistent vector index",
	Long: `Read a price book and add every entry to the catalog index.

The file needs description and price columns; code, unit, kind, chapter and
breakdown are optional. Headers may be Spanish or English.

Examples:
  budget catalog import precios.xlsx --dir ./catalog
  budget catalog import precios.csv --dir ./catalog --embedding-model hash`,
	Args: cobra.ExactArgs(1),
	RunE: runCatalogImport,
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the catalog index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCatalogSearch,
}

func openIndex(cmd *cobra.Command) (*catalog.Index, error) {
	newLogger(cmd.ErrOrStderr())
	cfg := common.LoadConfig()
	dir := catalogDir
	if dir == "" {
		dir = cfg.Catalog.PersistDir
	}
	if dir == "" {
		return nil, common.NewAppError("INVALID_INPUT", "--dir or CATALOG_DIR is required", common.ErrInvalidInput)
	}
	model := catalogModel
	if model == "" {
		model = cfg.Catalog.EmbeddingModel
	}
	return catalog.NewIndex(catalog.NewEmbedding(model, cfg.LLM.APIKey), dir, nil)
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	idx, err := openIndex(cmd)
	if err != nil {
		return err
	}
	entries, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := idx.Add(context.Background(), entries); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries; index now holds %d\n", len(entries), idx.Count())
	return nil
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	idx, err := openIndex(cmd)
	if err != nil {
		return err
	}
	var kind constants.ItemKind
	if searchKind != "" {
		k, ok := constants.ParseItemKind(searchKind)
		if !ok {
			return common.NewAppError("INVALID_INPUT", "unknown kind "+searchKind, common.ErrInvalidInput)
		}
		kind = k
	}
	chapter := searchChapter
	if chapter == "" {
		chapter = constants.UnknownContext
	}
	res, err := idx.Search(context.Background(), strings.Join(args, " "), searchLimit, chapter, kind)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
