package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/filing-assistant/internal/draft"
	"github.com/sells-group/filing-assistant/internal/model"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Save, load and submit filing drafts",
}

var (
	saveIn     computeInputs
	saveID     string
	savePeriod string
	saveRegime string
	saveForm   string
	saveSets   []string
	saveValues string
	saveExit   bool
)

var draftSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save the current draft to the remote store and local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		loaded, err := env.Drafts.LoadDraft(ctx, saveID)
		if err != nil {
			return err
		}
		snap := loaded.Snapshot
		if snap == nil {
			snap = &model.DraftSnapshot{OwnerID: cfg.Draft.OwnerID}
		}

		if len(saveIn.factPaths) > 0 {
			pos, err := saveIn.position(ctx, env.Ingest, env.Engine)
			if err != nil {
				return err
			}
			pos.ApplyTo(snap)
		}
		if err := applyEdits(snap); err != nil {
			return err
		}

		res, err := env.Drafts.SaveDraft(ctx, snap, draft.SaveOptions{ExitAfterSave: saveExit})
		result := draft.ResultCodeFor(res, err)
		out := map[string]any{"result": result.Code.String()}
		if result.Reason != "" {
			out["reason"] = result.Reason
		}
		if res != nil {
			out["draft_id"] = res.DraftID
			out["outcome"] = res.Outcome
			out["exit_after_save"] = res.ExitAfterSave
		}
		if werr := writeJSONOut(cmd.OutOrStdout(), out); werr != nil {
			return werr
		}
		if err != nil {
			zap.L().Error("draft save failed", zap.String("result", result.Code.String()), zap.Error(err))
		}
		return err
	},
}

// applyEdits layers the save command's flags over the snapshot.
func applyEdits(snap *model.DraftSnapshot) error {
	if savePeriod != "" {
		snap.AssessmentPeriod = savePeriod
	}
	if saveRegime != "" {
		r, err := model.ParseRegime(saveRegime)
		if err != nil {
			return err
		}
		snap.RegimeSelection.Regime = r
	}
	if saveForm != "" {
		snap.RegimeSelection.FormID = model.FormID(strings.ToUpper(saveForm))
	}

	values := map[string]any{}
	if saveValues != "" {
		data, err := os.ReadFile(saveValues)
		if err != nil {
			return eris.Wrapf(err, "read values %s", saveValues)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return eris.Wrapf(err, "parse values %s", saveValues)
		}
	}
	for _, kv := range saveSets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return eris.Errorf("--set %q must be key=value", kv)
		}
		values[key] = parseValue(raw)
	}
	if len(values) == 0 {
		return nil
	}
	if snap.UserEnteredValues == nil {
		snap.UserEnteredValues = make(map[string]any, len(values))
	}
	for k, v := range values {
		snap.UserEnteredValues[k] = v
	}
	return nil
}

// parseValue treats raw as JSON when it parses, and as a plain string otherwise.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

var loadID string

var draftLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a draft, merging the remote copy over the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Drafts.LoadDraft(ctx, loadID)
		if err != nil {
			return err
		}
		return writeJSONOut(cmd.OutOrStdout(), res)
	},
}

var submitID string

var draftSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a draft; it cannot be edited afterwards",
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitID == "" {
			return eris.New("--id is required")
		}
		ctx := cmd.Context()
		env, err := initClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Drafts.Submit(ctx, submitID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Submitted draft %s (%s)\n", snap.DraftID, snap.RegimeSelection.FormID)
		return nil
	},
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	saveIn.register(draftSaveCmd)
	draftSaveCmd.Flags().StringVar(&saveID, "id", "", "draft id (default: the current draft)")
	draftSaveCmd.Flags().StringVar(&savePeriod, "period", "", "assessment period, e.g. 2026-27")
	draftSaveCmd.Flags().StringVar(&saveRegime, "regime", "", "selected regime (old or new)")
	draftSaveCmd.Flags().StringVar(&saveForm, "form", "", "selected form, e.g. ITR-1")
	draftSaveCmd.Flags().StringArrayVar(&saveSets, "set", nil, "user-entered value key=value; repeatable")
	draftSaveCmd.Flags().StringVar(&saveValues, "values", "", "JSON file of user-entered values")
	draftSaveCmd.Flags().BoolVar(&saveExit, "exit", false, "mark the save as save-and-exit")

	draftLoadCmd.Flags().StringVar(&loadID, "id", "", "draft id (default: the current draft)")
	draftSubmitCmd.Flags().StringVar(&submitID, "id", "", "draft id")

	draftCmd.AddCommand(draftSaveCmd, draftLoadCmd, draftSubmitCmd)
	rootCmd.AddCommand(draftCmd)
}
