/*
Package domain contains the core data model of the Strata pipeline engine.

A pipeline is a directed graph of typed elements whose properties can be
inherited through a stack of partial layers (the "parent pipeline" chain).
This package only defines the model and its codecs; the merge, tree and
layout algorithms live in the stack, tree and layout packages, and the
mutation operations in edit.

# Key Entities

  - Element, Link, Property: the three kinds of entries a layer can add or remove.
  - StackLayer: one partial edit of the pipeline (add/remove lists per kind).
  - ConfigStack: the layers, root-most ancestor first, own layer last.
  - MergedView: the result of folding a ConfigStack.
  - Pipeline: a ConfigStack together with its MergedView.
  - PropertyValue: a tagged value holding exactly one of boolean, entity, integer, long or string.
  - TreeNode, Position, Layout: the derived display structures.
*/
package domain
