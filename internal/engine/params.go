package engine

// Search tuning constants shared across negamax's pruning and extension
// heuristics. Values follow the same order-of-magnitude as Stockfish's
// public tuning for the equivalent techniques, scaled to this engine's
// historyMax and piece values.

// threatExtensionMinDepth/threatExtensionThreshold gate detectSeriousThreats:
// only checked at decent depth, and only pieces worth at least a rook
// count as a serious hanging threat.
const threatExtensionMinDepth = 9
const threatExtensionThreshold = RookValue

// probcutDepth is the minimum depth at which ProbCut's shallow-search
// shortcut is attempted.
const probcutDepth = 5

// multicutDepth/multicutMoves/multicutRequired gate Multi-Cut: at least
// multicutDepth, try up to multicutMoves candidates, and cut once
// multicutRequired of them fail high at reduced depth.
const multicutDepth = 7
const multicutMoves = 4
const multicutRequired = 2

// historyPruningThreshold discards quiet moves with sufficiently bad
// butterfly history at low depth before they're ever played.
const historyPruningThreshold = -2000

// lazyEvalMargin is the fast-reject band used by quiescence's material-only
// pre-check before paying for a full static evaluation.
const lazyEvalMargin = 500
