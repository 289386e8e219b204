/*
Copyright 2025 The ShardQL Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queryengine

// SupportedFeatures is the comma-separated feature set the host must
// advertise to the query planner (§6). This implementation enables every
// strategy and operator the core knows how to drive, so the full feature
// set is advertised unconditionally.
const SupportedFeatures = "OffsetAndLimit,OrderBy,MultipleOrderBy,Top,Aggregate,HybridSearch,ReadMany,NonStreamingOrderBy"

// Version is the compile-time version string for this module.
const Version = "0.1.0"
