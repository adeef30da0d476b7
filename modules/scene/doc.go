/*
Package scene registers a small layered scene schema with the type registry.

It is the concrete data model the rtprop CLI and the end-to-end tests run
against: a Scene owns layers, objects (each with a stack of modifiers) and
actions whose channels address scene properties by path.

	Scene
	├── layers[]        Layer        keyed by name
	├── objects[]       Object       keyed by name
	│   └── modifiers[] Modifier     refined by type: WaveModifier, SubsurfModifier, script types
	├── actions[]       Action       keyed by name
	│   ├── groups[]    Group
	│   └── channels[]  Channel      data_path + array_index, grouped by name
	└── active_layer    *Layer

Script modifiers are extension types. Their instances carry the type
identifier in Modifier.Script, and RegisterScriptModifier installs the
trampolines that serve the Modifier.describe function for them.
*/
package scene
