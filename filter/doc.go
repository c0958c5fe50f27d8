// Package filter provides parsing, SQL encoding and in-memory evaluation of
// the AG Grid filter model sent with each get-rows request.
//
// This package enables data source developers to:
//   - Parse the filterModel JSON into strongly-typed Go structures
//   - Encode a parsed model to a parameterized SQL WHERE clause (DuckDB, PostgreSQL)
//   - Map column ids during encoding to translate between grid and database names
//   - Evaluate a model against in-memory records
//
// # Basic Usage
//
// Parse the filter model received in RowRangeRequest.FilterModel:
//
//	m, err := filter.Parse(req.FilterModel())
//	if err != nil {
//	    return err // Malformed model
//	}
//
//	enc := filter.NewSQLEncoder(nil)
//	where, args, err := enc.Encode(m)
//	if err != nil {
//	    return err
//	}
//	if where != "" {
//	    query := "SELECT * FROM orders WHERE " + where
//	    rows, err := db.QueryContext(ctx, query, args...)
//	}
//
// # Column Mapping
//
// Map grid column ids to database column names:
//
//	enc := filter.NewSQLEncoder(&filter.EncoderOptions{
//	    ColumnMapping: map[string]string{
//	        "userId":    "user_id",
//	        "createdAt": "created_at",
//	    },
//	})
//
// # Column Expression Replacement
//
// Replace column ids with SQL expressions for computed columns:
//
//	enc := filter.NewSQLEncoder(&filter.EncoderOptions{
//	    ColumnExpressions: map[string]string{
//	        "fullName": "CONCAT(first_name, ' ', last_name)",
//	    },
//	})
//
// # Model Shape
//
// Each column id maps to one filter:
//
//	{
//	  "age":  {"filterType": "number", "type": "inRange", "filter": 18, "filterTo": 65},
//	  "name": {"filterType": "text", "operator": "OR", "conditions": [
//	            {"filterType": "text", "type": "startsWith", "filter": "a"},
//	            {"filterType": "text", "type": "blank"}]},
//	  "country": {"filterType": "set", "values": ["NL", "DE", null]}
//	}
//
// The legacy two-condition form (condition1, condition2, operator) is
// accepted and normalized to Conditions.
package filter
