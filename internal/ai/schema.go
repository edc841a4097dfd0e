package ai

// The agent reads exactly one table; the query policy in extractSelect is
// anchored to these names.
const (
	schemaDatabase = "amm"
	schemaTable    = "settlements"
	qualifiedTable = schemaDatabase + "." + schemaTable
)

// settlementsSchemaDescription describes the ClickHouse schema used for
// NL→SQL prompting.
//
// Keep in sync with the settlements table definition in scripts/init.sql.
const settlementsSchemaDescription = `
Database: amm
Table: settlements

Columns:
  - request_id  String    -- Unique settlement request id (UUID)
  - timestamp   DateTime  -- Settlement time (UTC)
  - pool        String    -- Pool name, e.g. "ALPHA-BETA"
  - pair        String    -- Trading pair, e.g. "ALPHA/BETA"
  - asset_in    String    -- Symbol of the asset the payer sold
  - asset_out   String    -- Symbol of the asset the payer received
  - payer       String    -- Base58 payer address
  - delta0      Int64     -- Signed amount owed on the pool's asset0 side
  - delta1      Int64     -- Signed amount owed on the pool's asset1 side
  - amount_in   UInt64    -- Amount pulled from the payer (base units)
  - amount_out  UInt64    -- Amount paid out to the payer (base units)
  - price       Float64   -- Pool spot price after the swap (asset1 per asset0)
  - fee_bps     UInt16    -- Pool fee in basis points
  - settled     UInt8     -- 1 if the request settled, 0 if it was unwound
  - fail_reason String    -- Failure classification for unwound requests

Notes:
  - Positive deltas mean the payer paid the pool; negative deltas mean the
    pool paid the payer.
  - For volume use SUM(amount_in) or SUM(amount_out) depending on the side.
  - Time filters should use timestamp, e.g. timestamp >= now() - INTERVAL 24 HOUR.
  - Filter settled = 1 unless the question is about failures.
`
