package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Manage named camera settings",
	Long:  "Store, inspect and remove named camera settings in the --camera-db SQLite database.",
}

var cameraSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Create or update a camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runCameraSet,
}

var cameraGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print a camera as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCameraGet,
}

var cameraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cameras",
	Args:  cobra.NoArgs,
	RunE:  runCameraList,
}

var cameraDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runCameraDelete,
}

func init() {
	rootCmd.AddCommand(cameraCmd)
	cameraCmd.AddCommand(cameraSetCmd, cameraGetCmd, cameraListCmd, cameraDeleteCmd)

	defaults := camera.DefaultSettings()
	cameraSetCmd.Flags().String("iso", defaults.ISO, "ISO preset")
	cameraSetCmd.Flags().Float64("strength", defaults.StrengthMultiplier, "Grain strength multiplier (0..2)")
	cameraSetCmd.Flags().Float64("shadow-boost", defaults.ShadowBoost, "Grain multiplier in deep shadows (1..2)")
	cameraSetCmd.Flags().Float64("highlight-suppress", defaults.HighlightSuppress, "Grain multiplier in highlights (0.1..1)")
}

func openCameraStore() (*camera.Store, error) {
	return camera.Open(viper.GetString("camera-db"))
}

func runCameraSet(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}
	store, err := openCameraStore()
	if err != nil {
		return err
	}
	defer store.Close()

	// Start from the stored camera so set only changes the given flags.
	settings, err := camera.Resolve(cmd.Context(), store, args[0], camera.DefaultSettings())
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("iso") {
		settings.ISO, _ = flags.GetString("iso")
	}
	if flags.Changed("strength") {
		settings.StrengthMultiplier, _ = flags.GetFloat64("strength")
	}
	if flags.Changed("shadow-boost") {
		settings.ShadowBoost, _ = flags.GetFloat64("shadow-boost")
	}
	if flags.Changed("highlight-suppress") {
		settings.HighlightSuppress, _ = flags.GetFloat64("highlight-suppress")
	}

	if err := store.Put(cmd.Context(), args[0], settings); err != nil {
		return err
	}
	logger.Info("Camera saved", "name", args[0], "iso", settings.ISO, "db", store.Path())
	return nil
}

func runCameraGet(cmd *cobra.Command, args []string) error {
	store, err := openCameraStore()
	if err != nil {
		return err
	}
	defer store.Close()

	settings, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("camera %q: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(camera.Entry{Name: args[0], Settings: settings})
}

func runCameraList(cmd *cobra.Command, args []string) error {
	store, err := openCameraStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	return writeCameras(cmd.OutOrStdout(), entries)
}

func writeCameras(out io.Writer, entries []camera.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tISO\tSTRENGTH\tSHADOW BOOST\tHIGHLIGHT SUPPRESS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\n",
			e.Name, e.Settings.ISO, e.Settings.StrengthMultiplier,
			e.Settings.ShadowBoost, e.Settings.HighlightSuppress)
	}
	return tw.Flush()
}

func runCameraDelete(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}
	store, err := openCameraStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("camera %q: %w", args[0], err)
	}
	logger.Info("Camera deleted", "name", args[0])
	return nil
}
