package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/secretary-go/internal/db"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the database schema",
	Long: `Schema prints the SurrealDB schema the application applies on
startup. Useful for reviewing table and index definitions before
pointing the assistant at a shared database.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(db.SchemaSQL)
	},
}
