// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/tsrkit/trafficsigns/history"
)

type scopeKey struct{ Scope, Key string }

// Params prints the hyperparameters of all models, highlighting the ones that differ.
func Params(ctxs []*context.Context, names []string) {
	numCheckpoints := len(names)

	fmt.Println(titleStyle.Render("Hyperparameters"))
	headers := []string{"Scope", "Name", "Type"}
	if numCheckpoints == 1 {
		headers = append(headers, "Value")
	} else {
		headers = append(headers, names...)
	}
	table := history.NewTable(headers...)
	for _, row := range paramsRows(ctxs) {
		table.Row(differs(row[3:]), row...)
	}
	fmt.Println(table)
}

// differs returns whether the values are not all the same.
func differs(values []string) bool {
	return slices.ContainsFunc(values, func(v string) bool { return v != values[0] })
}

// paramsRows returns one row per hyperparameter set in any of the contexts, sorted by scope and name:
// scope, name, type and then one value per context (empty if not set there).
func paramsRows(ctxs []*context.Context) [][]string {
	scopeKeySet := make(map[scopeKey]bool)
	for _, ctx := range ctxs {
		ctx.EnumerateParams(func(scope, key string, value any) {
			scopeKeySet[scopeKey{Scope: scope, Key: key}] = true
		})
	}
	scopeKeys := slices.SortedFunc(maps.Keys(scopeKeySet), func(a, b scopeKey) int {
		return cmp.Or(cmp.Compare(a.Scope, b.Scope), cmp.Compare(a.Key, b.Key))
	})

	rows := make([][]string, 0, len(scopeKeys))
	for _, pair := range scopeKeys {
		row := make([]string, len(ctxs)+3)
		row[0], row[1] = pair.Scope, pair.Key
		for ii, ctx := range ctxs {
			if pair.Scope != context.RootScope {
				ctx = ctx.InAbsPath(pair.Scope)
			}
			value, found := ctx.GetParam(pair.Key)
			if !found {
				continue
			}
			if row[2] == "" {
				row[2] = fmt.Sprintf("%T", value)
			}
			row[3+ii] = fmt.Sprintf("%v", value)
		}
		rows = append(rows, row)
	}
	return rows
}
