package decoder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// dbParamSpec mirrors ParamSpec's JSON shape in the function_signatures
// table's inputs column.
type dbParamSpec struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

// LoadEventSignaturesFromDB reads the optional external
// function_signatures table (spec §3/§6) and returns the rows whose
// type is "event", ready for Registry.LoadSignatureRows. Rows with
// unparseable inputs are skipped rather than failing the whole load.
func LoadEventSignaturesFromDB(ctx context.Context, db *sql.DB) ([]SignatureRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT topic_or_selector, name, canonical_signature, inputs FROM function_signatures WHERE type = 'event'`)
	if err != nil {
		return nil, fmt.Errorf("decoder: loading function_signatures: %w", err)
	}
	defer rows.Close()

	var out []SignatureRow
	for rows.Next() {
		var topic0, name, sig, inputsJSON string
		if err := rows.Scan(&topic0, &name, &sig, &inputsJSON); err != nil {
			return nil, fmt.Errorf("decoder: scanning function_signatures: %w", err)
		}
		var dbParams []dbParamSpec
		if err := json.Unmarshal([]byte(inputsJSON), &dbParams); err != nil {
			continue
		}
		params := make([]ParamSpec, len(dbParams))
		for i, p := range dbParams {
			params[i] = ParamSpec{Name: p.Name, Type: p.Type, Indexed: p.Indexed}
		}
		out = append(out, SignatureRow{Topic0: topic0, Name: name, CanonicalSignature: sig, Params: params})
	}
	return out, rows.Err()
}
