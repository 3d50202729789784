package main

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/retrieval"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		imagePath string
		topK      int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search [text...]",
		Short: "Search restaurants by text, image or both",
		RunE: func(cmd *cobra.Command, args []string) error {
			var text *string
			if len(args) > 0 {
				t := strings.Join(args, " ")
				text = &t
			}
			var img image.Image
			if imagePath != "" {
				var err error
				if img, err = readImage(imagePath); err != nil {
					return err
				}
			}
			if topK == 0 {
				topK = a.cfg.Index.TopK
			}

			ctx := cmd.Context()
			svc, err := a.openServices(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.close()

			results, err := svc.recommender.SearchMultimodal(ctx, text, img, retrieval.WithTopK(topK))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "reference photo")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default index.top_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := encoder.DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func printResults(w io.Writer, results []retrieval.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%2d. %s (id %d)  similarity %.4f  distance %.4f\n", i+1, r.Name, r.ID, r.Similarity, r.Distance)
		if r.Address != nil {
			fmt.Fprintf(w, "    %s\n", *r.Address)
		}
		if r.Rating != nil {
			fmt.Fprintf(w, "    rating %.1f\n", *r.Rating)
		}
		if len(r.Vibes) > 0 {
			names := make([]string, len(r.Vibes))
			for j, v := range r.Vibes {
				names[j] = v.Name
			}
			fmt.Fprintf(w, "    vibes: %s\n", strings.Join(names, ", "))
		}
	}
}
