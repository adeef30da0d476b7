/*
Package path resolves string paths such as

	layers["Paint"].opacity
	objects["Cube"].color[2]
	active_layer.hide

into (instance, property, index) tuples, and builds those strings back from
a tuple.

The grammar is `segment ("." segment)*` where a segment is an identifier,
optionally followed by an integer index or a quoted key in brackets. Paths
are parsed and rendered with the HCL traversal syntax, so quoting and
escaping follow HCL rules.

A path that no longer resolves is an expected condition (a renamed layer, a
removed modifier) and yields a PathBroken error that is logged and reported
at info level only.
*/
package path
