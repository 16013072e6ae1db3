package graph

// Cypher statements for the coordination graph. All statements are fixed
// strings with $-parameters only; nothing caller-supplied is ever spliced
// into query text. The schema:
//
//	(:Codebase {name*, root_path})
//	(:Directory {path*, codebase*, name, depth})
//	(:File {path*, codebase*, name, extension, size_bytes})
//	(:Class {file_path*, name*, codebase*, line_number, base_classes})
//	(:Function {file_path*, name*, codebase*, line_number, is_method, parameters, owner_class})
//	(:Agent {name*, model, messages})
//
// Containment edges CONTAINS_DIR / CONTAINS_FILE / DEFINES_FUNCTION /
// DEFINES_CLASS / HAS_METHOD form a forest rooted at each Codebase.
// (:Agent)-[:CLAIM {claim_reason}]->(:Codebase|Directory|File) is the
// ownership edge; it always points into the node, so outgoing containment
// traversals never cross it.

// claimTargetPredicate matches a claimable node: the Codebase node itself
// (node_path equals the codebase name) or a File/Directory scoped to it.
const claimTargetPredicate = `(n:Codebase AND n.name = $codebase AND $node_path = $codebase)
   OR ((n:File OR n:Directory) AND n.path = $node_path AND n.codebase = $codebase)`

// ===== constraints =====

// constraintStatements are applied at startup. Neo4j has no uniqueness
// constraint over relationship endpoints, so "at most one CLAIM per node"
// is enforced by createClaimQuery instead.
var constraintStatements = []string{
	`CREATE CONSTRAINT agent_name_unique IF NOT EXISTS FOR (a:Agent) REQUIRE a.name IS UNIQUE`,
	`CREATE CONSTRAINT codebase_name_unique IF NOT EXISTS FOR (c:Codebase) REQUIRE c.name IS UNIQUE`,
	`CREATE CONSTRAINT directory_key_unique IF NOT EXISTS FOR (d:Directory) REQUIRE (d.path, d.codebase) IS UNIQUE`,
	`CREATE CONSTRAINT file_key_unique IF NOT EXISTS FOR (f:File) REQUIRE (f.path, f.codebase) IS UNIQUE`,
}

// ===== claims =====

// createClaimQuery performs the whole claim attempt in one statement.
// The claim_seq bump takes a write lock on the target node for the rest
// of the transaction, so concurrent claim transactions on the same node
// serialize and exactly one observes "no existing holder". The FOREACH
// only fires when no CLAIM edge exists.
//
// Row interpretation: no rows = node not found; holder_name null = claim
// created; holder_name = requester = already owned; otherwise conflict.
const createClaimQuery = `
MATCH (n)
WHERE ` + claimTargetPredicate + `
SET n.claim_seq = coalesce(n.claim_seq, 0) + 1
WITH n
OPTIONAL MATCH (holder:Agent)-[held:CLAIM]->(n)
FOREACH (_ IN CASE WHEN held IS NULL THEN [1] ELSE [] END |
  MERGE (a:Agent {name: $agent_name})
  SET a.model = $agent_model
  MERGE (a)-[c:CLAIM]->(n)
  SET c.claim_reason = $claim_reason)
RETURN labels(n) AS labels,
       coalesce(n.path, n.name) AS path,
       holder.name AS holder_name,
       holder.model AS holder_model,
       held.claim_reason AS holder_reason
LIMIT 1
`

// releaseClaimQuery removes the CLAIM edge for (agent, node) and deletes
// the Agent node when its claim count reaches zero. Returns the node
// labels and the Codebase root_path so the caller can run a scoped
// reindex. No rows means no such claim existed.
const releaseClaimQuery = `
MATCH (a:Agent {name: $agent_name})-[c:CLAIM]->(n)
WHERE ` + claimTargetPredicate + `
DELETE c
WITH a, n
OPTIONAL MATCH (cb:Codebase {name: $codebase})
WITH a, n, cb, size([(a)-[:CLAIM]->() | 1]) AS remaining
FOREACH (_ IN CASE WHEN remaining = 0 THEN [1] ELSE [] END |
  DETACH DELETE a)
RETURN labels(n) AS labels,
       coalesce(n.path, n.name) AS path,
       cb.root_path AS root_path,
       remaining AS remaining_claims
LIMIT 1
`

// ===== active agents =====

const activeClaimsAllQuery = `
MATCH (a:Agent)-[c:CLAIM]->(n)
RETURN a.name AS agent_name, a.model AS agent_model,
       labels(n) AS node_labels,
       coalesce(n.path, n.name) AS node_path,
       c.claim_reason AS claim_reason
ORDER BY agent_name, node_path
`

const activeClaimsByCodebaseQuery = `
MATCH (a:Agent)-[c:CLAIM]->(n)
WHERE (n:Codebase AND n.name = $codebase)
   OR ((n:File OR n:Directory) AND n.codebase = $codebase)
RETURN a.name AS agent_name, a.model AS agent_model,
       labels(n) AS node_labels,
       coalesce(n.path, n.name) AS node_path,
       c.claim_reason AS claim_reason
ORDER BY agent_name, node_path
`

// ===== find =====

// findReturnTail is shared by every find variant: annotate each node with
// its claimant and order deterministically by path.
const findReturnTail = `
OPTIONAL MATCH (a:Agent)-[c:CLAIM]->(n)
RETURN labels(n) AS node_labels,
       coalesce(n.path, n.name) AS node_path,
       n.name AS node_name,
       a.name AS claimed_by,
       c.claim_reason AS claim_reason
ORDER BY node_path
LIMIT $limit
`

// findQueries holds one pre-built statement per permitted type filter.
// The NodeType key is the closed enum; there is no generic templated form.
var findQueries = map[NodeType]string{
	NodeTypeAny: `
MATCH (n)
WHERE (n:Codebase AND n.name = $codebase) OR n.codebase = $codebase` + findReturnTail,
	NodeTypeCodebase: `
MATCH (n:Codebase)
WHERE n.name = $codebase` + findReturnTail,
	NodeTypeDirectory: `
MATCH (n:Directory)
WHERE n.codebase = $codebase` + findReturnTail,
	NodeTypeFile: `
MATCH (n:File)
WHERE n.codebase = $codebase` + findReturnTail,
	NodeTypeClass: `
MATCH (n:Class)
WHERE n.codebase = $codebase` + findReturnTail,
	NodeTypeFunction: `
MATCH (n:Function)
WHERE n.codebase = $codebase` + findReturnTail,
}

// ===== upserts =====

// Upserts MERGE on the natural key and overwrite scalar fields, so they
// are safe under arbitrary repetition. A node with no parent_path hangs
// directly off the Codebase root.

const upsertCodebaseQuery = `
MERGE (c:Codebase {name: $name})
SET c.root_path = $root_path
`

const upsertDirectoryQuery = `
MERGE (d:Directory {path: $path, codebase: $codebase})
SET d.name = $name, d.depth = $depth
WITH d
OPTIONAL MATCH (parent:Directory {path: $parent_path, codebase: $codebase})
FOREACH (p IN CASE WHEN $parent_path <> '' AND parent IS NOT NULL THEN [parent] ELSE [] END |
  MERGE (p)-[:CONTAINS_DIR]->(d))
WITH d
OPTIONAL MATCH (root:Codebase {name: $codebase})
FOREACH (r IN CASE WHEN $parent_path = '' AND root IS NOT NULL THEN [root] ELSE [] END |
  MERGE (r)-[:CONTAINS_DIR]->(d))
`

const upsertFileQuery = `
MERGE (f:File {path: $path, codebase: $codebase})
SET f.name = $name, f.extension = $extension, f.size_bytes = $size_bytes
WITH f
OPTIONAL MATCH (parent:Directory {path: $parent_path, codebase: $codebase})
FOREACH (p IN CASE WHEN $parent_path <> '' AND parent IS NOT NULL THEN [parent] ELSE [] END |
  MERGE (p)-[:CONTAINS_FILE]->(f))
WITH f
OPTIONAL MATCH (root:Codebase {name: $codebase})
FOREACH (r IN CASE WHEN $parent_path = '' AND root IS NOT NULL THEN [root] ELSE [] END |
  MERGE (r)-[:CONTAINS_FILE]->(f))
`

const upsertFunctionQuery = `
MERGE (fn:Function {file_path: $file_path, name: $name, codebase: $codebase})
SET fn.line_number = $line_number, fn.is_method = $is_method,
    fn.parameters = $parameters, fn.owner_class = $owner_class
WITH fn
OPTIONAL MATCH (f:File {path: $file_path, codebase: $codebase})
FOREACH (p IN CASE WHEN f IS NOT NULL THEN [f] ELSE [] END |
  MERGE (p)-[:DEFINES_FUNCTION]->(fn))
WITH fn
OPTIONAL MATCH (cl:Class {file_path: $file_path, name: $owner_class, codebase: $codebase})
FOREACH (c IN CASE WHEN $owner_class <> '' AND cl IS NOT NULL THEN [cl] ELSE [] END |
  MERGE (c)-[:HAS_METHOD]->(fn))
`

const upsertClassQuery = `
MERGE (cl:Class {file_path: $file_path, name: $name, codebase: $codebase})
SET cl.line_number = $line_number, cl.base_classes = $base_classes
WITH cl
OPTIONAL MATCH (f:File {path: $file_path, codebase: $codebase})
FOREACH (p IN CASE WHEN f IS NOT NULL THEN [f] ELSE [] END |
  MERGE (p)-[:DEFINES_CLASS]->(cl))
`

// ===== deletes / clear subtree =====

// Cascading deletes remove everything reachable via outgoing containment
// edges before the node itself. CLAIM edges point into the node, so the
// traversal never follows them.

const deleteDirectoryCascadeQuery = `
MATCH (d:Directory {path: $path, codebase: $codebase})
OPTIONAL MATCH (d)-[*]->(descendant)
DETACH DELETE descendant
WITH DISTINCT d
DETACH DELETE d
`

const deleteDirectoryQuery = `
MATCH (d:Directory {path: $path, codebase: $codebase})
DETACH DELETE d
`

const deleteFileCascadeQuery = `
MATCH (f:File {path: $path, codebase: $codebase})
OPTIONAL MATCH (f)-[*]->(child)
DETACH DELETE child
WITH DISTINCT f
DETACH DELETE f
`

const deleteFileQuery = `
MATCH (f:File {path: $path, codebase: $codebase})
DETACH DELETE f
`

const deleteFunctionQuery = `
MATCH (fn:Function {file_path: $file_path, name: $name, codebase: $codebase})
DETACH DELETE fn
`

const deleteClassQuery = `
MATCH (cl:Class {file_path: $file_path, name: $name, codebase: $codebase})
OPTIONAL MATCH (cl)-[:HAS_METHOD]->(m:Function)
DETACH DELETE m
WITH DISTINCT cl
DETACH DELETE cl
`

// ===== mailbox =====

const agentExistsQuery = `
MATCH (a:Agent {name: $agent_name})
RETURN a.name AS name, a.model AS model
LIMIT 1
`

const appendMessageQuery = `
MATCH (a:Agent {name: $agent_name})
SET a.messages = coalesce(a.messages, []) + $message
RETURN size(a.messages) AS message_count
`

const getMessagesQuery = `
MATCH (a:Agent {name: $agent_name})
RETURN coalesce(a.messages, []) AS messages
LIMIT 1
`

const clearMessagesQuery = `
MATCH (a:Agent {name: $agent_name})
SET a.messages = []
`
